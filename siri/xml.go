package siri

import (
	"strconv"
	"strings"
)

// BuildXML serializes a SIRI response as XML.
func BuildXML(res *SiriResponse) []byte {
	var b strings.Builder
	b.WriteString(`<Siri xmlns="http://www.siri.org.uk/siri">`)
	sd := res.Siri.ServiceDelivery
	b.WriteString("<ServiceDelivery>")
	writeElement(&b, "ResponseTimestamp", sd.ResponseTimestamp)
	writeElement(&b, "ProducerRef", sd.ProducerRef)
	for _, vm := range sd.VehicleMonitoringDelivery {
		writeVehicleMonitoringXML(&b, vm)
	}
	b.WriteString("</ServiceDelivery>")
	b.WriteString("</Siri>")
	return []byte(b.String())
}

func writeVehicleMonitoringXML(b *strings.Builder, vm VehicleMonitoring) {
	b.WriteString("<VehicleMonitoringDelivery>")
	writeElement(b, "ResponseTimestamp", vm.ResponseTimestamp)
	writeElement(b, "ValidUntil", vm.ValidUntil)
	for _, va := range vm.VehicleActivity {
		b.WriteString("<VehicleActivity>")
		writeElement(b, "RecordedAtTime", va.RecordedAtTime)
		writeElement(b, "ValidUntilTime", va.ValidUntilTime)
		writeMVJXML(b, va.MonitoredVehicleJourney)
		b.WriteString("</VehicleActivity>")
	}
	b.WriteString("</VehicleMonitoringDelivery>")
}

func writeMVJXML(b *strings.Builder, mvj MonitoredVehicleJourney) {
	b.WriteString("<MonitoredVehicleJourney>")
	writeElement(b, "LineRef", mvj.LineRef)
	writeElement(b, "PublishedLineName", mvj.PublishedLineName)
	writeElement(b, "DestinationRef", mvj.DestinationRef)
	writeElement(b, "DestinationName", mvj.DestinationName)
	b.WriteString("<Monitored>")
	b.WriteString(strconv.FormatBool(mvj.Monitored))
	b.WriteString("</Monitored>")
	writeElement(b, "DataSource", mvj.DataSource)
	writeLocationXML(b, "VehicleLocation", mvj.VehicleLocation)
	writeElement(b, "VehicleStatus", mvj.VehicleStatus)
	writeElement(b, "VehicleRef", mvj.VehicleRef)
	if c := mvj.MonitoredCall; c != nil {
		b.WriteString("<MonitoredCall>")
		writeElement(b, "StopPointRef", c.StopPointRef)
		writeElement(b, "StopPointName", c.StopPointName)
		if c.VehicleAtStop != nil {
			writeElement(b, "VehicleAtStop", strconv.FormatBool(*c.VehicleAtStop))
		}
		writeLocationXML(b, "VehicleLocationAtStop", c.VehicleLocationAtStop)
		writeElement(b, "DestinationDisplay", c.DestinationDisplay)
		if c.Extensions != nil {
			d := c.Extensions.Distances
			b.WriteString("<Extensions><Distances>")
			writeElement(b, "PresentableDistance", d.PresentableDistance)
			if d.DistanceFromCall != nil {
				writeElement(b, "DistanceFromCall", strconv.FormatFloat(*d.DistanceFromCall, 'f', -1, 64))
			}
			b.WriteString("</Distances></Extensions>")
		}
		b.WriteString("</MonitoredCall>")
	}
	b.WriteString("<IsCompleteStopSequence>")
	b.WriteString(strconv.FormatBool(mvj.IsCompleteStopSequence))
	b.WriteString("</IsCompleteStopSequence>")
	b.WriteString("</MonitoredVehicleJourney>")
}

func writeLocationXML(b *strings.Builder, tag string, loc *VehicleLocation) {
	if loc == nil || (loc.Latitude == nil && loc.Longitude == nil) {
		return
	}
	b.WriteString("<" + tag + ">")
	if loc.Longitude != nil {
		writeElement(b, "Longitude", strconv.FormatFloat(*loc.Longitude, 'f', 6, 64))
	}
	if loc.Latitude != nil {
		writeElement(b, "Latitude", strconv.FormatFloat(*loc.Latitude, 'f', 6, 64))
	}
	b.WriteString("</" + tag + ">")
}

// writeElement writes <tag>value</tag>, skipping empty values.
func writeElement(b *strings.Builder, tag, value string) {
	if value == "" {
		return
	}
	b.WriteString("<" + tag + ">")
	b.WriteString(xmlEscape(value))
	b.WriteString("</" + tag + ">")
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
