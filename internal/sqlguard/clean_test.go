package sqlguard

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "SELECT 1", "SELECT 1;"},
		{"fenced", "```sql\nSELECT COUNT(*) FROM transactions;\n```", "SELECT COUNT(*) FROM transactions;"},
		{"notes dropped", "SELECT 1;\n\nNote: counts all rows\nExplanation: simple", "SELECT 1;"},
		{"double semicolon", "SELECT 1;;;", "SELECT 1;"},
		{"multiline kept", "SELECT a\nFROM t\nLIMIT 5;", "SELECT a\nFROM t\nLIMIT 5;"},
		{"empty", "", ";"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clean(tc.in); got != tc.want {
				t.Fatalf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRepair(t *testing.T) {
	got, ok := Repair("Here is your query: SELECT COUNT(*) FROM transactions; Hope it helps;")
	if !ok || got != "SELECT COUNT(*) FROM transactions; Hope it helps;" {
		t.Fatalf("Repair = %q %v", got, ok)
	}

	got, ok = Repair("Sure! select 1; trailing")
	if !ok || got != "select 1;" {
		t.Fatalf("Repair = %q %v", got, ok)
	}

	if _, ok := Repair("no statement here;"); ok {
		t.Fatalf("expected no SELECT")
	}
	if _, ok := Repair("SELECT 1"); ok {
		t.Fatalf("expected no terminator")
	}
}

func TestRepair_ThenValidate(t *testing.T) {
	v := New(0, "")
	raw := Clean("The answer is SELECT COUNT(*) FROM transactions")
	fixed, ok := Repair(raw)
	if !ok || fixed != "SELECT COUNT(*) FROM transactions;" {
		t.Fatalf("Repair = %q %v", fixed, ok)
	}
	if err := v.Validate(fixed); err != nil {
		t.Fatalf("Validate(repaired) = %v", err)
	}
}

func TestIsRefusal(t *testing.T) {
	if !IsRefusal("SELECT 'Невозможно сгенерировать SQL для данного запроса.' as error;") {
		t.Fatalf("refusal not detected")
	}
	if !IsRefusal(`select 'no' AS "error" ;`) {
		t.Fatalf("quoted alias not detected")
	}
	if IsRefusal("SELECT COUNT(*) AS error FROM transactions;") {
		t.Fatalf("real query flagged as refusal")
	}
}
