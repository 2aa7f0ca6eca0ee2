// Package geo provides the coordinate type and great-circle math used by the
// tracking engine.
//
// Distances are computed with the haversine formula on a spherical Earth of
// radius 6,371,000 m. Invalid input (NaN, infinities, latitudes outside
// [-90,90] or longitudes outside [-180,180]) never panics: DistanceMeters
// returns +Inf so that threshold comparisons always err towards "far away".
package geo
