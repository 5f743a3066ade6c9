// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import "github.com/samber/oops"

// PublicMessage returns the client-safe message attached to err with
// oops.Public, or "" when err carries none.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	return oops.GetPublic(err, "")
}

// Code returns the oops code of err as a string, or "" if err is not an
// oops error or has no string code.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// HasCode reports whether err carries the given oops code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}
