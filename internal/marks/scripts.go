// internal/marks/scripts.go
package marks

import "fmt"

// The labeler keeps its state in window.__wpMarks. A navigation discards
// the window object, so stale labels resolve to nothing and clicking one
// fails closed rather than hitting an unrelated element.

const containerID = "__wp-marks-overlay"

// interactiveSelector is the fixed interactive-element set: links with
// href, buttons, non-hidden inputs, selects, textareas, ARIA interaction
// roles, onclick handlers, and non-negative tabindexes.
const interactiveSelector = `a[href], button, input:not([type=hidden]), select, textarea,` +
	` [role=button], [role=link], [role=checkbox], [role=radio], [role=tab], [role=menuitem],` +
	` [onclick], [tabindex]:not([tabindex="-1"])`

// markScript enumerates, sorts, labels and visually marks the interactive
// set. viewportOnly additionally filters to elements within ~100px of the
// current scroll viewport and uses fixed-position labels; the full-document
// mode anchors labels at document coordinates so they stay correct under
// scrolling. Re-running first removes all prior labels (idempotent
// refresh).
func markScript(viewportOnly bool) string {
	return fmt.Sprintf(`(function(){
	const viewportOnly = %v;
	const prev = document.getElementById(%q);
	if (prev) prev.remove();

	const seen = new Set();
	const els = [];
	document.querySelectorAll(%q).forEach(el => {
		if (seen.has(el)) return;
		seen.add(el);
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return;
		if (viewportOnly) {
			const margin = 100;
			if (r.bottom < -margin || r.top > window.innerHeight + margin) return;
		}
		els.push({el: el, rect: r});
	});

	const sx = window.scrollX, sy = window.scrollY;
	els.sort((a, b) => {
		const ay = a.rect.top + sy, by = b.rect.top + sy;
		if (Math.abs(ay - by) > 20) return ay - by;
		return (a.rect.left + sx) - (b.rect.left + sx);
	});

	const shortEnough = v => v && v.length > 0 && v.length <= 64;
	const makeSelector = el => {
		if (el.id) return '#' + CSS.escape(el.id);
		const tag = el.tagName.toLowerCase();
		let sel = tag;
		if (el.classList.length > 0) {
			sel += '.' + [...el.classList].slice(0, 2).map(c => CSS.escape(c)).join('.');
		}
		if (document.querySelectorAll(sel).length === 1) return sel;
		const href = el.getAttribute('href');
		if (shortEnough(href)) return sel + '[href="' + href.replace(/"/g, '\\"') + '"]';
		const type = el.getAttribute('type');
		if (shortEnough(type)) sel += '[type="' + type + '"]';
		const name = el.getAttribute('name');
		if (shortEnough(name)) sel += '[name="' + name.replace(/"/g, '\\"') + '"]';
		return sel;
	};

	const container = document.createElement('div');
	container.id = %q;
	container.style.cssText = 'position:absolute;top:0;left:0;pointer-events:none;z-index:2147483646;';
	document.body.appendChild(container);

	const out = [];
	const stored = [];
	els.forEach((item, i) => {
		const el = item.el, r = item.rect;
		stored.push(el);

		const badge = document.createElement('div');
		badge.textContent = String(i);
		const x = viewportOnly ? r.left : r.left + sx;
		const y = viewportOnly ? r.top : r.top + sy;
		badge.style.cssText = (viewportOnly ? 'position:fixed;' : 'position:absolute;') +
			'left:' + x + 'px;top:' + y + 'px;' +
			'background:#d32f2f;color:#fff;font:bold 11px monospace;padding:1px 4px;' +
			'border-radius:3px;pointer-events:none;z-index:2147483647;';
		container.appendChild(badge);
		el.style.outline = '2px solid #d32f2f';

		out.push({
			label: i,
			selector: makeSelector(el),
			tagName: el.tagName,
			type: el.getAttribute('type') || '',
			text: (el.textContent || el.value || el.getAttribute('aria-label') || '').trim().substring(0, 80),
			href: el.href || '',
			boundingBox: {x: r.left + sx, y: r.top + sy, width: r.width, height: r.height}
		});
	});

	window.__wpMarks = {elements: stored, viewportOnly: viewportOnly};
	return out;
})()`, viewportOnly, containerID, interactiveSelector, containerID)
}

// unmarkScript removes all labels and outlines.
const unmarkScript = `(function(){
	const prev = document.getElementById('` + containerID + `');
	if (prev) prev.remove();
	if (window.__wpMarks && window.__wpMarks.elements) {
		window.__wpMarks.elements.forEach(el => { try { el.style.outline = ''; } catch(e) {} });
	}
	window.__wpMarks = undefined;
	return {success:true};
})()`

// clickByLabelScript clicks a previously labeled element. The element must
// still be attached to the current document; otherwise the click fails
// loudly. Scroll-into-view happens synchronously before the click.
func clickByLabelScript(label int) string {
	return fmt.Sprintf(`(function(){
	const marks = window.__wpMarks;
	if (!marks || !marks.elements) return {success:false, error:'not_found'};
	const el = marks.elements[%d];
	if (!el || !document.contains(el)) return {success:false, error:'not_found'};
	el.scrollIntoView({block:'center'});
	el.click();
	return {success:true, tag:el.tagName};
})()`, label)
}
