// Package files locates and archives the weekly report workbooks.
//
// Reports are published as WPR_<report date>_<instrument>_COMB_<stamp>.xlsx,
// where the stamp is the publication time as yyMMddHHmmss. Discovery lists
// them in the order they should be replayed into the history store; Manager
// archives uploaded workbooks into the downloads directory under that name.
package files
