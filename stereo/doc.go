// Package stereo computes disparity maps for rectified stereo pairs with
// window based matching: an optional rank transform pre-filter, sum of
// absolute differences aggregated over a square window, winner-take-all
// selection over a disparity range, and a peak ratio (PKRN) confidence gate.
//
// Matching is brute force on purpose; MatchDisparityIntegral is the
// incremental-cost version and produces identical output.
//
// All operations are pure: inputs are never modified and every call returns
// freshly allocated maps.
package stereo
