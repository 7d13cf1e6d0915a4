package backup

import "testing"

func TestCellAsInt(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		def  int64
		want int64
	}{
		{name: "integer passes through", cell: Int(42), want: 42},
		{name: "float rounds down", cell: Float(4.2), want: 4},
		{name: "float rounds up", cell: Float(4.6), want: 5},
		{name: "half rounds away from zero", cell: Float(4.5), want: 5},
		{name: "negative half rounds away from zero", cell: Float(-4.5), want: -5},
		{name: "integer string", cell: Text("17"), want: 17},
		{name: "float string falls back to float parse", cell: Text("4.0"), want: 4},
		{name: "float string rounds", cell: Text("3.7"), want: 4},
		{name: "whitespace trimmed", cell: Text("  8 "), want: 8},
		{name: "unparseable string yields default", cell: Text("N/A"), def: 0, want: 0},
		{name: "unparseable string yields caller default", cell: Text("N/A"), def: 7, want: 7},
		{name: "empty string yields default", cell: Text(""), def: 3, want: 3},
		{name: "null yields default", cell: Null(), def: 9, want: 9},
		{name: "true is one", cell: Bool(true), want: 1},
		{name: "false is zero", cell: Bool(false), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cell.AsInt(tt.def); got != tt.want {
				t.Errorf("AsInt(%d) = %d, want %d", tt.def, got, tt.want)
			}
		})
	}
}

func TestCellAsText(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{name: "text passes through", cell: Text("hello"), want: "hello"},
		{name: "integer stringified", cell: Int(12), want: "12"},
		{name: "float stringified", cell: Float(1.5), want: "1.5"},
		{name: "null is empty", cell: Null(), want: ""},
		{name: "bool stringified", cell: Bool(true), want: "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cell.AsText(); got != tt.want {
				t.Errorf("AsText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCellAsBool(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want bool
	}{
		{name: "true passes through", cell: Bool(true), want: true},
		{name: "false passes through", cell: Bool(false), want: false},
		{name: "int one", cell: Int(1), want: true},
		{name: "int zero", cell: Int(0), want: false},
		{name: "float one", cell: Float(1.0), want: true},
		{name: "float zero", cell: Float(0.0), want: false},
		{name: "TRUE string", cell: Text("TRUE"), want: true},
		{name: "true lowercase", cell: Text("true"), want: true},
		{name: "one string", cell: Text("1"), want: true},
		{name: "FALSE string", cell: Text("FALSE"), want: false},
		{name: "zero string", cell: Text("0"), want: false},
		{name: "garbage is false", cell: Text("maybe"), want: false},
		{name: "null is false", cell: Null(), want: false},
		{name: "other int is false", cell: Int(2), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cell.AsBool(); got != tt.want {
				t.Errorf("AsBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{name: "nil", in: nil, want: KindNull},
		{name: "bool", in: true, want: KindBool},
		{name: "float64", in: 3.14, want: KindFloat},
		{name: "string", in: "x", want: KindText},
		{name: "int", in: 5, want: KindInt},
		{name: "unknown type degrades to null", in: []string{"x"}, want: KindNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromAny(tt.in).Kind(); got != tt.want {
				t.Errorf("FromAny(%v).Kind() = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
