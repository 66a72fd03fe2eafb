// Package planning computes the difference between the configuration a run
// wants and the configuration that exists.
//
// Entries are identified by (key, label), compared without regard to case.
// Values and content types are compared exactly.
//
// The Engine first looks for desired entries that disagree with each other:
// two entries with the same identity but different values form a conflict,
// and every entry of a conflicting group is left out of the diff. The rest
// are classified as Create, Update or Unchanged against the existing
// snapshot. Output order depends only on the entries, never on input order.
package planning
