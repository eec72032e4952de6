// Package pcml parses call-document templates and implements the call
// document bound to a host session.
//
// Templates use a subset of the Program Call Markup Language:
//
//	<pcml version="6.0">
//	  <struct name="Disbursement">
//	    <data name="date"   type="char"   length="10"/>
//	    <data name="amount" type="packed" length="15" precision="2"/>
//	  </struct>
//	  <program name="AMORT" entrypoint="AMORT_CALC">
//	    <data name="loanId" type="char" length="12" usage="input"/>
//	    <data name="rows" type="struct" struct="Disbursement" count="12" usage="output"/>
//	    <data name="rowCount" type="int" length="4" usage="output"/>
//	  </program>
//	</pcml>
//
// Supported data types are char, int (length 2, 4 or 8; precision equal to
// length*8 marks it unsigned), packed and zoned (length is the number of
// digits, precision the number of fractional digits), float (length 4 or 8,
// held as a decimal with six fractional digits) and struct. Counts
// must be literal numbers.
//
// A Store reads templates from a directory, one <name>.pcml file per
// template, and caches them. A Watcher invalidates cached templates when
// their files change.
package pcml
