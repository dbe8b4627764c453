package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/evse-controller/internal/slot"
	"github.com/sweeney/evse-controller/internal/status"
)

var slotNames = map[int]string{
	slot.IncomingCable:  "Incoming cable",
	slot.OutgoingCable:  "Outgoing cable",
	slot.ShutdownInput:  "Shutdown input",
	slot.GPInput:        "GP input",
	slot.Button:         "Button",
	slot.Global:         "Global",
	slot.User:           "User",
	slot.LoadManagement: "Load management",
	slot.External:       "External control",
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"amps": func(ma uint32) string {
		return fmt.Sprintf("%d.%03d A", ma/1000, ma%1000)
	},
	"percent": func(duty uint16) string {
		return fmt.Sprintf("%d.%d %%", duty/10, duty%10)
	},
	"slotName": func(i int) string {
		if name, ok := slotNames[i]; ok {
			return name
		}
		return fmt.Sprintf("Slot %d", i)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>EVSE Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.error { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>EVSE Controller</h1>

<h2>Vehicle</h2>
<table>
<tr><th>State</th><td id="state" class="{{if eq .State "C"}}on{{else if eq .State "EF"}}error{{else if eq .State "UNKNOWN"}}unknown{{else}}off{{end}}">{{.State}}</td></tr>
<tr><th>Charging</th><td class="{{if .Charging}}on{{else}}off{{end}}">{{if .Charging}}yes{{else}}no{{end}}</td></tr>
<tr><th>Contactor</th><td class="{{if .EVSE.Contactor}}on{{else}}off{{end}}">{{if .EVSE.Contactor}}closed{{else}}open{{end}}{{if .EVSE.TurnOffPending}} (waiting for vehicle){{end}}</td></tr>
{{if .EVSE.ContactorError}}<tr><th>Contactor check</th><td class="error">error</td></tr>{{end}}
<tr><th>Max current</th><td>{{amps .EVSE.MaxCurrent}}</td></tr>
<tr><th>Duty cycle</th><td>{{percent .EVSE.DutyCycle}}</td></tr>
<tr><th>CP/PE</th><td>{{.EVSE.CPResistance}} Ω</td></tr>
<tr><th>PP/PE</th><td>{{.EVSE.PPResistance}} Ω</td></tr>
<tr><th>ADC samples</th><td>{{.EVSE.ADCSamples}}</td></tr>
{{if .EVSE.Session}}<tr><th>Session</th><td>{{.EVSE.Session}}</td></tr>{{end}}
{{if .ChargingTime}}<tr><th>Charging time</th><td>{{uptime .ChargingTime}}</td></tr>{{end}}
<tr><th>Ready</th><td>{{if .EVSE.Started}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Configuration</h2>
<table>
<tr><th>Jumper</th><td>{{.EVSE.Jumper}}</td></tr>
<tr><th>Managed</th><td>{{if .EVSE.Managed}}yes ({{amps .EVSE.ManagedCurrent}}){{else}}no{{end}}</td></tr>
<tr><th>Autostart</th><td>{{if .EVSE.Autostart}}yes{{else}}no{{end}}</td></tr>
<tr><th>Boost</th><td>{{if .EVSE.BoostMode}}yes{{else}}no{{end}}</td></tr>
{{if .EVSE.Calibrating}}<tr><th>Calibration</th><td class="unknown">running</td></tr>{{end}}
{{if .EVSE.CalibrationError}}<tr><th>Calibration</th><td class="error">failed</td></tr>{{end}}
</table>

<h2>Slots</h2>
<table>
{{range $i, $s := .EVSE.Slots}}{{if $s.Active}}<tr><th>{{slotName $i}}</th><td>{{amps $s.MaxCurrent}}{{if $s.ClearOnDisconnect}} (cleared on disconnect){{end}}</td></tr>
{{end}}{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .MQTTBuffered}}<tr><th>Buffered</th><td>{{.MQTTBuffered}} messages</td></tr>
{{end}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Transitions</th><td>{{.Counts.Transitions}}</td></tr>
<tr><th>Sessions</th><td>{{.Counts.Sessions}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		State        string
		Charging     bool
		Uptime       time.Duration
		ChargingTime time.Duration
	}{
		Snapshot:     snap,
		State:        status.StateName(snap),
		Charging:     status.IsCharging(snap),
		Uptime:       snap.Uptime(),
		ChargingTime: snap.ChargingTime(),
	}
	return indexTmpl.Execute(w, data)
}
