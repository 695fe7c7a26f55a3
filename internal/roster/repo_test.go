package roster

import "testing"

func TestMustJSON(t *testing.T) {
	if got := string(mustJSON(emptySlice(nil))); got != "[]" {
		t.Fatalf("nil slice encodes as %s, want []", got)
	}
	if got := string(mustJSON(emptyMap(nil))); got != "{}" {
		t.Fatalf("nil map encodes as %s, want {}", got)
	}
	if got := string(mustJSON([]string{"월", "수"})); got != `["월","수"]` {
		t.Fatalf("slice encodes as %s", got)
	}
}

func TestEmptyHelpersKeepValues(t *testing.T) {
	days := []string{"월"}
	if got := emptySlice(days); len(got) != 1 || got[0] != "월" {
		t.Fatalf("emptySlice mangled %v", got)
	}
	times := map[string]string{"월": "15:30"}
	if got := emptyMap(times); got["월"] != "15:30" {
		t.Fatalf("emptyMap mangled %v", got)
	}
}

func TestNullableBool(t *testing.T) {
	if nullableBool(nil) != nil {
		t.Fatal("nil flag must map to SQL NULL")
	}
	v := false
	if got := nullableBool(&v); got != false {
		t.Fatalf("explicit false must survive, got %v", got)
	}
}
