// Package combobox implements the selection state behind a typeahead
// picker: static or remote options, single or multiple selection, keyboard
// navigation, grouping and inline creation. It holds no rendering.
//
// Remote searches are debounced. Every issued search takes a generation
// number and only the latest generation may apply its result, so a slow
// response to an old query never replaces a newer one.
package combobox
