// Package logtail reads the end of beoplay's log file for display in the TUI.
//
// # Reading
//
// Read seeks backwards from the end of the file in fixed chunks until it has
// seen enough line breaks, so the cost depends on maxLines rather than on the
// file size. A missing file is not an error: the TUI may start before the
// first line was ever written.
//
//	lines, err := logtail.Read(cfg.Log.File, 200)
//
// # Parsing
//
// Parse turns a zerolog JSON line into an Entry with time, level, message and
// the remaining fields as sorted key=value pairs. Console-format or foreign
// lines are kept verbatim in Raw. Entry.String renders the compact form the
// TUI shows:
//
//	14:32:15 WRN device unreachable, cooldown armed host=192.168.1.40 remaining=5
package logtail
