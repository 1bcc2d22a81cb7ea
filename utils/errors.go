// elstat: statistics for somatic variant calls.
// Copyright (c) 2020-2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elstat/blob/master/LICENSE.txt>.

package utils

import "github.com/pkg/errors"

// Error kinds reported by elstat. Call sites wrap them with
// errors.Wrapf to add context; use errors.Is to test for a kind.
var (
	// ErrConfiguration is reported for invalid parameters, such as a
	// malformed length range or an event the call set does not declare.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedVariantType is reported for variant types other
	// than SNV, INS and DEL.
	ErrUnsupportedVariantType = errors.New("unsupported variant type (supported: SNV, INS, DEL)")

	// ErrEmptyInput is reported when no data survives filtering.
	ErrEmptyInput = errors.New("no data left after filtering")

	// ErrEmptyNullSet is reported when the null call set has no
	// records left after variant type filtering.
	ErrEmptyNullSet = errors.New("null call set is empty after filtering")

	// ErrMissingEvent is reported when no record of a call set carries
	// a probability for a requested event.
	ErrMissingEvent = errors.New("event missing from every record")
)
