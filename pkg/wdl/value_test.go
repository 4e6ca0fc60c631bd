package wdl

import "testing"

func TestValueFromAny(t *testing.T) {
	cases := []struct {
		in   any
		want string
		typ  string
	}{
		{int64(3), "3", "Int"},
		{float64(3), "3", "Int"},
		{2.5, "2.5", "Float"},
		{"hi", `"hi"`, "String"},
		{true, "true", "Boolean"},
		{[]any{int64(1), int64(2)}, "[1, 2]", "Array[Int]"},
	}
	for _, c := range cases {
		v, err := ValueFromAny(c.in)
		if err != nil {
			t.Errorf("ValueFromAny(%v): %v", c.in, err)
			continue
		}
		if v.SourceString() != c.want {
			t.Errorf("ValueFromAny(%v) = %s, want %s", c.in, v.SourceString(), c.want)
		}
		if v.T.String() != c.typ {
			t.Errorf("ValueFromAny(%v) type = %s, want %s", c.in, v.T, c.typ)
		}
	}

	if _, err := ValueFromAny(struct{}{}); err == nil {
		t.Error("ValueFromAny accepted a struct")
	}
}

func TestValueSourceStringEscapes(t *testing.T) {
	v := StringValue(`say "hi"`)
	if got := v.SourceString(); got != `"say \"hi\""` {
		t.Errorf("SourceString = %s", got)
	}
}
