package alert

import (
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Kind
		wantErr bool
	}{
		{name: "exact", input: "DISTRESS_SIGNAL", want: KindDistressSignal},
		{name: "lowercase", input: "vital_out_of_range", want: KindVitalOutOfRange},
		{name: "whitespace", input: "  MANUAL_REPORT ", want: KindManualReport},
		{name: "unknown", input: "SOMETHING_ELSE", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKind(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKind(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSeverityMax(t *testing.T) {
	tests := []struct {
		name string
		a, b Severity
		want Severity
	}{
		{name: "higher wins", a: SeverityLow, b: SeverityCritical, want: SeverityCritical},
		{name: "order independent", a: SeverityCritical, b: SeverityLow, want: SeverityCritical},
		{name: "equal", a: SeverityHigh, b: SeverityHigh, want: SeverityHigh},
		{name: "medium vs high", a: SeverityMedium, b: SeverityHigh, want: SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Max(tt.b); got != tt.want {
				t.Errorf("%s.Max(%s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDefaultSeverity(t *testing.T) {
	tests := []struct {
		kind Kind
		want Severity
	}{
		{kind: KindProlongedInactivity, want: SeverityMedium},
		{kind: KindVitalOutOfRange, want: SeverityHigh},
		{kind: KindManualReport, want: SeverityMedium},
		{kind: KindDistressSignal, want: SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := DefaultSeverity(tt.kind); got != tt.want {
				t.Errorf("DefaultSeverity(%s) = %s, want %s", tt.kind, got, tt.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusActive:       false,
		StatusAcknowledged: false,
		StatusResolved:     true,
		StatusFalseAlarm:   true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}
