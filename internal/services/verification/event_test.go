package verification

import "testing"

func TestParseBackendEvent(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantStatus string
		wantFinal  bool
		wantErr    bool
	}{
		{name: "verified with result", data: `{"verification_status":"verified","result":true}`, wantStatus: "verified", wantFinal: true},
		{name: "status without result", data: `{"verification_status":"verified"}`, wantStatus: "verified"},
		{name: "false result", data: `{"verification_status":"rejected","result":false}`, wantStatus: "rejected"},
		{name: "zero result", data: `{"result":0}`},
		{name: "empty string result", data: `{"result":""}`},
		{name: "null result", data: `{"result":null}`},
		{name: "object result", data: `{"verification_status":"rejected","result":{"reason":"expired"}}`, wantStatus: "rejected", wantFinal: true},
		{name: "numeric status", data: `{"verification_status":2,"result":"done"}`, wantStatus: "2", wantFinal: true},
		{name: "non-object payload", data: `[1,2]`},
		{name: "malformed", data: `{not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBackendEvent(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.status, tt.wantStatus)
			}
			if got.final != tt.wantFinal {
				t.Errorf("final = %v, want %v", got.final, tt.wantFinal)
			}
			if got.payload == nil {
				t.Error("expected payload to be kept")
			}
		})
	}
}

func TestParseTerminalPolicy(t *testing.T) {
	for in, want := range map[string]TerminalPolicy{
		"":         TerminalOnResult,
		"result":   TerminalOnResult,
		" Message": TerminalOnMessage,
	} {
		got, err := ParseTerminalPolicy(in)
		if err != nil {
			t.Fatalf("ParseTerminalPolicy(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTerminalPolicy(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseTerminalPolicy("eventually"); err == nil {
		t.Fatal("expected unknown policy to be rejected")
	}
}
