// Package toc builds the table of contents of a documentation page.
//
// Content is parsed with gomarkdown, every heading is given a stable anchor
// id (github-slugger compatible, so links written against the old site keep
// working) and the headings are collected in document order. The same
// annotated tree is what the renderer turns into HTML, which keeps TOC ids
// and rendered heading ids identical.
package toc
