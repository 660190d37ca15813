// internal/actions/scripts.go
package actions

import (
	"fmt"

	"github.com/halcyonforge/webpilot/internal/sandbox"
)

// Script synthesis is a pure compile step: (action, escaped params) ->
// script text. Every script is a self-contained IIFE returning a
// {success, error?} object (or a raw value for queries) so the executor
// can interpret outcomes uniformly. Parameters are escaped exclusively via
// sandbox.JSString / sandbox.JSValue.

const (
	errNotFound   = "not_found"
	errNoEditable = "no_editable"
)

func clickScript(selector string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	if (!el) return {success:false, error:%q};
	el.scrollIntoView({block:'center'});
	el.click();
	return {success:true, tag:el.tagName};
})()`, sandbox.JSString(selector), errNotFound)
}

func doubleClickScript(selector string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	if (!el) return {success:false, error:%q};
	el.scrollIntoView({block:'center'});
	el.dispatchEvent(new MouseEvent('dblclick', {bubbles:true, cancelable:true, view:window}));
	return {success:true, tag:el.tagName};
})()`, sandbox.JSString(selector), errNotFound)
}

func fillScript(selector, value string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	if (!el) return {success:false, error:%q};
	el.focus();
	el.value = %s;
	el.dispatchEvent(new Event('input', {bubbles:true}));
	el.dispatchEvent(new Event('change', {bubbles:true}));
	return {success:true};
})()`, sandbox.JSString(selector), errNotFound, sandbox.JSString(value))
}

// typeScript appends text to whatever element currently has input focus.
func typeScript(text string) string {
	return fmt.Sprintf(`(function(){
	const el = document.activeElement;
	const editable = el && (el.tagName === 'INPUT' || el.tagName === 'TEXTAREA' || el.isContentEditable);
	if (!editable) return {success:false, error:%q};
	const text = %s;
	if (el.isContentEditable) {
		el.textContent += text;
	} else {
		el.value += text;
	}
	el.dispatchEvent(new Event('input', {bubbles:true}));
	return {success:true, tag:el.tagName};
})()`, errNoEditable, sandbox.JSString(text))
}

// pressScript synthesizes a key-down/key-up pair on the focused (or
// best-guess) element. For Enter it additionally walks up to an enclosing
// form, or finds a form containing a filled text input, and submits it --
// preferring a programmatic click on a visible submit control so the same
// JS listeners fire as for a real click.
func pressScript(key string) string {
	return fmt.Sprintf(`(function(){
	const key = %s;
	let el = document.activeElement;
	if (!el || el === document.body) {
		el = document.querySelector('input:focus, textarea:focus') || document.body;
	}
	const opts = {key:key, bubbles:true, cancelable:true};
	el.dispatchEvent(new KeyboardEvent('keydown', opts));
	el.dispatchEvent(new KeyboardEvent('keyup', opts));
	if (key !== 'Enter') return {success:true, key:key};

	let form = el.closest ? el.closest('form') : null;
	if (!form) {
		const forms = [...document.querySelectorAll('form')];
		form = forms.find(f => [...f.querySelectorAll('input')].some(i =>
			(i.type === 'text' || i.type === 'search' || i.type === 'email' || i.type === 'password') && i.value));
	}
	if (!form) return {success:true, key:key, submitted:false};

	const submit = [...form.querySelectorAll('button[type=submit], input[type=submit], button:not([type])')]
		.find(b => {
			const r = b.getBoundingClientRect();
			return r.width > 0 && r.height > 0;
		});
	if (submit) {
		submit.click();
	} else if (form.requestSubmit) {
		form.requestSubmit();
	} else {
		form.submit();
	}
	return {success:true, key:key, submitted:true};
})()`, sandbox.JSString(key))
}

func hoverScript(selector string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	if (!el) return {success:false, error:%q};
	el.scrollIntoView({block:'center'});
	const r = el.getBoundingClientRect();
	const opts = {bubbles:true, cancelable:true, view:window,
		clientX: r.left + r.width/2, clientY: r.top + r.height/2};
	el.dispatchEvent(new MouseEvent('mouseover', opts));
	el.dispatchEvent(new MouseEvent('mouseenter', opts));
	el.dispatchEvent(new MouseEvent('mousemove', opts));
	return {success:true};
})()`, sandbox.JSString(selector), errNotFound)
}

func scrollIntoViewScript(selector string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	if (!el) return {success:false, error:%q};
	el.scrollIntoView({block:'center'});
	return {success:true};
})()`, sandbox.JSString(selector), errNotFound)
}

func scrollByScript(dx, dy int) string {
	return fmt.Sprintf(`(function(){ window.scrollBy(%d, %d); return {success:true}; })()`, dx, dy)
}

func focusScript(selector string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	if (!el) return {success:false, error:%q};
	el.focus();
	return {success:true};
})()`, sandbox.JSString(selector), errNotFound)
}

// clickTextScript clicks the first interactive element whose visible text,
// value, title or aria-label contains the given text (case-insensitive).
func clickTextScript(text string) string {
	return fmt.Sprintf(`(function(){
	const t = %s.toLowerCase();
	const els = [...document.querySelectorAll('button,a,input[type=submit],input[type=button],[role=button]')]
		.filter(e =>
			(e.textContent||'').toLowerCase().includes(t) ||
			(e.value||'').toLowerCase().includes(t) ||
			(e.title||'').toLowerCase().includes(t) ||
			(e.getAttribute('aria-label')||'').toLowerCase().includes(t));
	if (!els[0]) return {success:false, error:%q};
	els[0].scrollIntoView({block:'center'});
	els[0].click();
	return {success:true, tag:els[0].tagName, text:(els[0].textContent||'').trim().substring(0,50)};
})()`, sandbox.JSString(text), errNotFound)
}

func querySelectorScript(selector string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	if (!el) return null;
	const r = el.getBoundingClientRect();
	return {
		tag: el.tagName,
		id: el.id || '',
		text: (el.textContent||'').trim().substring(0,200),
		value: el.value !== undefined ? String(el.value) : '',
		visible: r.width > 0 && r.height > 0
	};
})()`, sandbox.JSString(selector))
}

func querySelectorAllScript(selector string, limit int) string {
	return fmt.Sprintf(`(function(){
	const out = [];
	document.querySelectorAll(%s).forEach((el, i) => {
		if (i >= %d) return;
		out.push({
			tag: el.tagName,
			id: el.id || '',
			text: (el.textContent||'').trim().substring(0,100)
		});
	});
	return out;
})()`, sandbox.JSString(selector), limit)
}

func existsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, sandbox.JSString(selector))
}

func countScript(selector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, sandbox.JSString(selector))
}

func getTextScript(selector string) string {
	return fmt.Sprintf(`(function(){
	const el = document.querySelector(%s);
	return el ? (el.textContent||'').trim() : null;
})()`, sandbox.JSString(selector))
}

func hasTextScript(text string) string {
	return fmt.Sprintf(
		`(document.body.textContent||'').toLowerCase().includes(%s.toLowerCase())`,
		sandbox.JSString(text))
}

func getCookiesScript() string {
	return `(function(){
	return document.cookie.split('; ').filter(c => c).map(c => {
		const i = c.indexOf('=');
		return {name: c.substring(0, i), value: c.substring(i + 1)};
	});
})()`
}

func setCookieScript(name, value, path string) string {
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf(`(function(){
	document.cookie = %s + '=' + %s + '; path=' + %s;
	return {success:true};
})()`, sandbox.JSString(name), sandbox.JSString(value), sandbox.JSString(path))
}

func deleteCookiesScript() string {
	return `(function(){
	let n = 0;
	document.cookie.split('; ').filter(c => c).forEach(c => {
		const name = c.substring(0, c.indexOf('='));
		document.cookie = name + '=; expires=Thu, 01 Jan 1970 00:00:00 GMT; path=/';
		n++;
	});
	return {success:true, deleted:n};
})()`
}
