// Package capture extracts values from responses so later scenario steps
// can refer to them.
//
// A capture expression names its source:
//
//	body              the whole body text
//	body.<path>       a gjson path into a JSON body
//	header.<Name>     a response header
//	cookie.<name>     a cookie set by the response
//	status            the status code
//	duration          the elapsed time in milliseconds
package capture
