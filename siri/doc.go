// Package siri renders tracked field workers as a SIRI VehicleMonitoring
// delivery (CEN/TS 15531) so dashboards built for transit vehicles can show
// them.
//
// A task maps to a monitored journey: LineRef is "TASK:<id>", VehicleRef is
// the assignee and the task destination is the single monitored call. The
// remaining straight-line distance is reported in the call's Distances
// extension.
package siri
