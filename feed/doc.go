// Package feed exports tracked worker positions as a GTFS-Realtime
// VehiclePositions feed so existing AVL and map tooling can consume them.
//
// Each task with a live position becomes one entity: the task id is the trip
// id and the assignee name is the vehicle label.
package feed
