// Package csvfile implements driven.Table for delimited text files.
//
// Feed exports are messy: comma or tab delimited (sometimes a different
// delimiter on the header line than on data lines), doubled-quote or
// backslash quote escaping, optional UTF-8 BOM, multi-line quoted fields.
// The reader sniffs delimiter and escape style once at open time from file
// samples, then streams rows without ever holding the file in memory.
package csvfile
