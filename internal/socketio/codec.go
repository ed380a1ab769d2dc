package socketio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EncodeEvent renders name and payload as 42["name",payload].
func EncodeEvent(name string, payload any) (string, error) {
	b, err := json.Marshal([]any{name, payload})
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return PacketEvent + string(b), nil
}

// Encode is EncodeEvent for an Event value.
func Encode(ev Event) (string, error) {
	return EncodeEvent(ev.Name, ev.Payload)
}

// EncodeOpen renders the Engine.IO open packet sent by a server.
func EncodeOpen(hs Handshake) (string, error) {
	if hs.Upgrades == nil {
		hs.Upgrades = []string{}
	}
	b, err := json.Marshal(hs)
	if err != nil {
		return "", fmt.Errorf("encode open: %w", err)
	}
	return PacketOpen + string(b), nil
}

// ConnectAck renders the namespace connect acknowledgment for sid. An empty
// sid yields the bare "40" some servers send.
func ConnectAck(sid string) string {
	if sid == "" {
		return PacketConnect
	}
	b, _ := json.Marshal(map[string]string{"sid": sid})
	return PacketConnect + string(b)
}

// Decode classifies one text frame. Prefixes are checked in a fixed order and
// malformed bodies degrade to KindUnknown rather than failing.
func Decode(text string) Frame {
	f := Frame{Raw: text}

	switch {
	case strings.HasPrefix(text, openFramePrefix):
		f.Kind = KindEngineOpen
		var hs Handshake
		if err := json.Unmarshal([]byte(text[len(PacketOpen):]), &hs); err == nil {
			f.Handshake = &hs
		}
	case text == PacketPing:
		f.Kind = KindEnginePing
	case text == PacketPong:
		f.Kind = KindEnginePong
	case strings.HasPrefix(text, PacketConnect):
		f.Kind = KindConnectAck
	case strings.HasPrefix(text, eventFramePrefix):
		decodeEvent(&f)
	}

	return f
}

// decodeEvent reads the first top-level JSON array after the 42 prefix.
// Brackets inside string values do not end it; anything after the array is
// ignored.
func decodeEvent(f *Frame) {
	dec := json.NewDecoder(strings.NewReader(f.Raw[len(PacketEvent):]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) == 0 {
		return
	}

	// A first element that is not a string still makes a well-formed event;
	// it has no name and surfaces as feedback.
	var name string
	_ = json.Unmarshal(parts[0], &name)

	f.Kind = KindEvent
	f.Event = name
	if len(parts) > 1 {
		f.Payload = parts[1]
	}

	if strings.Contains(name, EventScore) {
		if score, ok := ParseScore(f.Payload); ok {
			f.Score = score
			f.HasScore = true
			return
		}
	}

	trimmed := bytes.TrimSpace(raw)
	f.Feedback = string(trimmed[1 : len(trimmed)-1])
}

// ParseScore accepts a bare number (85), a numeric string ("85") or an object
// with a score field ({"score":85}). Fractional values are rounded.
func ParseScore(payload json.RawMessage) (int, bool) {
	if len(payload) == 0 {
		return 0, false
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}

	switch x := v.(type) {
	case json.Number:
		return numberToInt(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	case map[string]any:
		if n, ok := x["score"].(json.Number); ok {
			return numberToInt(n)
		}
	}
	return 0, false
}

// numberToInt rejects values that do not fit in an int.
func numberToInt(n json.Number) (int, bool) {
	if i, err := n.Int64(); err == nil {
		if i < math.MinInt || i > math.MaxInt {
			return 0, false
		}
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Round(f)
	if f < math.MinInt || f >= -math.MinInt {
		return 0, false
	}
	return int(f), true
}
