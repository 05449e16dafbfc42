// Package domain models cloud-top brightness temperature (TBB) analysis over
// Himawari-8/9 AHI infrared grids.
//
// # Data Source
//
// Grids are NetCDF files exported per band and per scan, one scalar field
// over a regular lat/lon grid. Callers name the files explicitly; band and
// scan time are taken from the file name:
//
//	"H09_B13_Indonesia_202401011200.nc"  →  band B13, 2024-01-01 12:00 UTC
//
// The band token is "B" plus two digits. The timestamp is YYYYMMDD followed by
// HHMM, optionally separated by '_', 'T' or '-'. Names without both are
// reported as warnings and excluded from the run.
//
// # Units
//
// Values are Kelvin or Celsius depending on the product. Every grid is
// converted to Celsius (K − 273.15) before sampling, so every mean, index
// and threshold below is in °C.
//
// # Sampling
//
// A sample is the mean of the finite cells around the nearest cell to a target:
//
//	pixel radius:    r = max(1, round(radius_km / 2 km)), square window clamped to the grid
//	distance radius: every cell whose distance to the target is ≤ radius_km
//
// Distance is Euclidean in degrees (× 111.32 km/deg) or haversine
// (R = 6371 km). The degree mode overstates east–west distance away from the
// equator and is kept so earlier analyses can be reproduced. A selection with
// no finite cells is not an error; it yields a missing point.
//
// # Band Roles and Indices
//
// Default roles for AHI:
//
//	B07 3.9 µm   shortwave IR
//	B08 6.2 µm   water vapour
//	B13 10.4 µm  longwave IR, reference for rapid cooling and cloud-top class
//	B15 12.4 µm  split window
//
// Derived per timestep (t−1 is the previous row of the table):
//
//	rapid cooling  v[t] − v[t−1] per band
//	updraft        B07 − B13
//	dry intrusion  B08[t] − B08[t−1]
//	turbulence     |B13 − B15|
//	CIPI           clip(0.5·coolTerm + 0.5·tempTerm, 0, 1)
//
// Composite ladder (first match wins):
//
//	strong signal            updraft ≤ −5 and (cooling ≤ −3 or dry intrusion ≥ 1.5)
//	local strong convection  updraft ≤ −5
//	ordinary convection      otherwise
//
// Cooling ladder: ≤ −15 extreme, ≤ −10 strong, ≤ −5 fast cooling, else normal.
// Cloud-top ladder: ≤ −60 very tall cumulonimbus, ≤ −50 high convective cloud.
package domain
