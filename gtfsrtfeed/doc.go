// Package gtfsrtfeed ingests agent positions from a GTFS-Realtime
// VehiclePositions feed. Fleets whose telematics already publish
// standard GTFS-RT plug into the same validated ingest path as the
// JSON API.
package gtfsrtfeed
