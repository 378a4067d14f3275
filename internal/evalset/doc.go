// Package evalset loads the labeled lead evaluation file and renders the
// per-lead context block appended to every scoring prompt.
//
// The file is a CSV with a header row naming Name, Title, Company, LinkedIn,
// EmployeeRange, and ExpectedScore. Header matching ignores case, spaces,
// underscores, and hyphens. Rows whose ExpectedScore is not an integer in
// 0..10 are skipped and reported rather than scored; a file with no usable
// rows is rejected.
package evalset
