// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package flow

import "time"

// Privacy buckets for "time since last successful update". Thresholds are
// strictly ascending, first match wins; anything not below a threshold
// falls into the open-ended last bucket.
const (
	BucketUnder30Minutes = "under-30m"
	BucketUnder2Hours    = "under-2h"
	BucketUnder6Hours    = "under-6h"
	BucketUnder1Day      = "under-1d"
	BucketUnder2Days     = "under-2d"
	BucketUnder1Week     = "under-1w"
	BucketUnder1Month    = "under-1M"
	BucketOver1Month     = "over-1M"
)

var bucketThresholds = []struct {
	limit time.Duration
	label string
}{
	{30 * time.Minute, BucketUnder30Minutes},
	{2 * time.Hour, BucketUnder2Hours},
	{6 * time.Hour, BucketUnder6Hours},
	{24 * time.Hour, BucketUnder1Day},
	{48 * time.Hour, BucketUnder2Days},
	{7 * 24 * time.Hour, BucketUnder1Week},
	{30 * 24 * time.Hour, BucketUnder1Month},
}

// BucketTimeSince maps an elapsed duration onto its privacy bucket.
// Negative durations (clock skew) land in the smallest bucket.
func BucketTimeSince(elapsed time.Duration) string {
	for _, b := range bucketThresholds {
		if elapsed < b.limit {
			return b.label
		}
	}
	return BucketOver1Month
}
