package browser

import (
	"github.com/go-rod/rod"
)

// LabelMatcherJS is a function of one string argument returning every element
// whose accessible label equals it after whitespace collapsing. The label may
// come from aria-label, aria-labelledby, an associated <label>, or title.
const LabelMatcherJS = `(label) => {
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
	const want = norm(label);
	const out = [];
	const seen = new Set();
	const push = (el) => {
		if (el && !seen.has(el)) {
			seen.add(el);
			out.push(el);
		}
	};
	for (const el of document.querySelectorAll('[aria-label]')) {
		if (norm(el.getAttribute('aria-label')) === want) push(el);
	}
	for (const el of document.querySelectorAll('[aria-labelledby]')) {
		const text = el.getAttribute('aria-labelledby').split(/\s+/)
			.map((id) => document.getElementById(id))
			.filter(Boolean)
			.map((n) => n.textContent)
			.join(' ');
		if (norm(text) === want) push(el);
	}
	for (const lab of document.querySelectorAll('label')) {
		if (norm(lab.textContent) === want) push(lab.control);
	}
	for (const el of document.querySelectorAll('[title]')) {
		if (norm(el.getAttribute('title')) === want) push(el);
	}
	return out;
}`

// ElementsByLabel wraps Rod's ElementsByJS with the label matcher, the same
// way selector queries avoid rod's cached helper functions.
func ElementsByLabel(page *rod.Page, label string) ([]*rod.Element, error) {
	opts := rod.Eval(LabelMatcherJS, label).ByObject()
	return page.ElementsByJS(opts)
}
