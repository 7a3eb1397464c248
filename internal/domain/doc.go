// Package domain holds the address-resolution and ETA models for the order
// service.
//
// # Address conventions
//
// Customers type free-text Tunisian addresses, often with the capital or the
// country repeated ("Rue de Marseille, Tunis, Tunisie") or missing entirely.
// [NormalizeAddress] strips trailing "Tunis"/"Tunisia"/"Tunisie" tokens and
// appends a single ", {city}, Tunisia" suffix, so every provider sees the same
// canonical query and normalizing twice is a no-op.
//
// # Geocoding cascade
//
// [Resolver] tries providers strictly in order:
//
//	LocationIQ  → OpenCage → OpenCage (simplified) → Nominatim
//
// Paid providers report a confidence signal; a low score on a city- or
// state-level candidate means the provider fell back to the Tunis centroid,
// and the candidate is rejected. When both paid providers miss, OpenCage is
// retried with the first address segment (usually the street) plus the city,
// then plus each secondary locality (Carthage, La Marsa, ...) mentioned in
// the rest of the address. Nominatim is the unfiltered last resort. Every
// provider call is counted per calendar day through a [UsageTracker].
//
// # ETA model
//
//	prep:    ≤3 items 15 | ≤6 20 | ≤10 25 | >10 30 min, × day multiplier in [19,22)
//	travel:  km / 20 km/h × traffic × day × weather + 3 min arrival buffer
//	traffic: 12–14h, 19–21h 1.5 | 11h, 14–19h, 21h 1.2 | else 1.0
//	day:     Fri 1.2 | Sat, Sun 1.1 | else 1.0
//	weather: clear 1.0 | rain 1.4 | heavy_rain 1.8
//
// Delivery confidence starts high, drops to medium beyond 3 km or in bad
// weather, to low beyond 5 km, then one more level during peak hours. The
// range is ±10/15/20 % for high/medium/low. Pickup is always high with a
// ±5 minute range floored at 10.
package domain
