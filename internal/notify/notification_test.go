package notify

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecode_Volume(t *testing.T) {
	line := `{"notification":{"type":"VOLUME","timestamp":"2024-01-02T10:00:00","data":{"speaker":{"level":35,"muted":false,"range":{"minimum":0,"maximum":90}}}}}`

	n, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if n.Kind != KindVolume || n.Err != nil {
		t.Fatalf("Decode = kind %q err %v, want VOLUME without error", n.Kind, n.Err)
	}
	got, ok := n.Payload.(Volume)
	if !ok {
		t.Fatalf("payload type = %T, want Volume", n.Payload)
	}
	want := Volume{Level: 35, Muted: false, Min: 0, Max: 90}
	if got != want {
		t.Fatalf("payload = %#v, want %#v", got, want)
	}
	if n.Timestamp != "2024-01-02T10:00:00" {
		t.Fatalf("timestamp = %q", n.Timestamp)
	}
	if len(n.Raw) == 0 || n.Raw[0] != '{' {
		t.Fatalf("raw = %q, want inner notification object", n.Raw)
	}
}

func TestDecode_NumericStrings(t *testing.T) {
	line := `{"notification":{"type":"VOLUME","data":{"speaker":{"level":"40","muted":true,"range":{"minimum":"0","maximum":100.0}}}}}`

	n, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	got := n.Payload.(Volume)
	if got.Level != 40 || !got.Muted || got.Max != 100 {
		t.Fatalf("payload = %#v, want level 40 muted max 100", got)
	}
}

func TestDecode_MalformedLines(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"notification": `,
		"no envelope":      `{"other":{}}`,
		"null envelope":    `{"notification":null}`,
		"missing type":     `{"notification":{"data":{}}}`,
		"envelope not obj": `{"notification":[1,2]}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(line))
			if !errors.Is(err, ErrMalformedLine) {
				t.Fatalf("Decode error = %v, want ErrMalformedLine", err)
			}
		})
	}
}

func TestDecode_MissingFieldsAreDeliveredWithErr(t *testing.T) {
	cases := map[string]string{
		"volume without speaker":    `{"notification":{"type":"VOLUME","data":{}}}`,
		"volume without range":      `{"notification":{"type":"VOLUME","data":{"speaker":{"level":1,"muted":false}}}}`,
		"source without state":      `{"notification":{"type":"SOURCE","data":{"primaryExperience":{"source":{"friendlyName":"Radio"}}}}}`,
		"progress with null data":   `{"notification":{"type":"PROGRESS_INFORMATION","data":null}}`,
		"progress without state":    `{"notification":{"type":"PROGRESS_INFORMATION","data":{"position":3}}}`,
		"experience no listener":    `{"notification":{"type":"SOURCE_EXPERIENCE_CHANGED","data":{"primaryExperience":{}}}}`,
		"music without name":        `{"notification":{"type":"NOW_PLAYING_STORED_MUSIC","data":{"artist":"A"}}}`,
		"legacy without kind":       `{"notification":{"type":"NOW_PLAYING_LEGACY","data":{"trackNumber":3}}}`,
		"number and name no number": `{"notification":{"type":"NUMBER_AND_NAME","data":{"name":"BBC"}}}`,
		"sound mode no name":        `{"notification":{"type":"SOUND_ACTIVE_MODE_CHANGED","data":{}}}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			n, err := Decode([]byte(line))
			if err != nil {
				t.Fatalf("Decode returned error: %v", err)
			}
			if !errors.Is(n.Err, ErrMissingField) {
				t.Fatalf("Err = %v, want ErrMissingField", n.Err)
			}
			if n.Payload != nil {
				t.Fatalf("Payload = %#v, want nil", n.Payload)
			}
		})
	}
}

func TestDecode_SourceWithoutDataMeansNoSource(t *testing.T) {
	for _, line := range []string{
		`{"notification":{"type":"SOURCE","data":{}}}`,
		`{"notification":{"type":"SOURCE"}}`,
	} {
		n, err := Decode([]byte(line))
		if err != nil || n.Err != nil {
			t.Fatalf("Decode(%s) = %v / %v", line, err, n.Err)
		}
		if got := n.Payload.(Source); got.Present {
			t.Fatalf("payload = %#v, want absent source", got)
		}
	}
}

func TestDecode_ListenerShapes(t *testing.T) {
	plain := `{"notification":{"type":"SOURCE_EXPERIENCE_CHANGED","data":{"primaryExperience":{"listener":["a@x","b@x"]}}}}`
	objects := `{"notification":{"type":"SOURCE_EXPERIENCE_CHANGED","data":{"primaryExperience":{"listener":[{"jid":"a@x"},{"jid":"b@x"}]}}}}`

	for _, line := range []string{plain, objects} {
		n, err := Decode([]byte(line))
		if err != nil || n.Err != nil {
			t.Fatalf("Decode = %v / %v", err, n.Err)
		}
		got := n.Payload.(Experience).Listeners
		if !reflect.DeepEqual(got, []string{"a@x", "b@x"}) {
			t.Fatalf("listeners = %v", got)
		}
	}
}

func TestDecode_NetRadioLanguages(t *testing.T) {
	single := `{"notification":{"type":"NOW_PLAYING_NET_RADIO","data":{"name":"Jazz","languages":"English"}}}`
	list := `{"notification":{"type":"NOW_PLAYING_NET_RADIO","data":{"name":"Jazz","languages":["English","Danish"],"image":[{"url":"http://h.:8080/i.png"}]}}}`

	n, _ := Decode([]byte(single))
	if got := n.Payload.(NetRadio).Languages; !reflect.DeepEqual(got, []string{"English"}) {
		t.Fatalf("single languages = %v", got)
	}
	n, _ = Decode([]byte(list))
	radio := n.Payload.(NetRadio)
	if !reflect.DeepEqual(radio.Languages, []string{"English", "Danish"}) {
		t.Fatalf("list languages = %v", radio.Languages)
	}
	if radio.ImageURL == nil || *radio.ImageURL != "http://h.:8080/i.png" {
		t.Fatalf("image = %v, want raw url", radio.ImageURL)
	}
}

func TestDecode_LegacyUsesEnvelopeKind(t *testing.T) {
	n, err := Decode([]byte(`{"notification":{"type":"NOW_PLAYING_LEGACY","kind":"playing","data":{"trackNumber":7}}}`))
	if err != nil || n.Err != nil {
		t.Fatalf("Decode = %v / %v", err, n.Err)
	}
	want := Legacy{TrackNumber: 7, Kind: "playing"}
	if got := n.Payload.(Legacy); got != want {
		t.Fatalf("payload = %#v, want %#v", got, want)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	n, err := Decode([]byte(`{"notification":{"type":"SHAPE_CHANGED","data":{"x":1}}}`))
	if err != nil || n.Err != nil {
		t.Fatalf("Decode = %v / %v", err, n.Err)
	}
	if n.Kind.Known() {
		t.Fatalf("kind %q reported as known", n.Kind)
	}
	if _, ok := n.Payload.(Unknown); !ok {
		t.Fatalf("payload = %T, want Unknown", n.Payload)
	}
}
