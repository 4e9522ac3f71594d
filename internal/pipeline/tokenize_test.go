package pipeline

import (
	"reflect"
	"testing"
)

func TestSplitLine(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "plain", input: "a,b,c", want: []string{"a", "b", "c"}},
		{name: "quoted comma", input: `a,"b,c",d`, want: []string{"a", "b,c", "d"}},
		{name: "trailing empty field", input: "a,b,", want: []string{"a", "b", ""}},
		{name: "empty line", input: "", want: []string{""}},
		{name: "quotes consumed", input: `"a",b`, want: []string{"a", "b"}},
		{name: "no trimming", input: " a , b ", want: []string{" a ", " b "}},
		{name: "unterminated quote swallows commas", input: `a,"b,c`, want: []string{"a", "b,c"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitLine(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
