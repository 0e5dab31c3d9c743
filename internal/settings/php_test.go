package settings

import (
	"errors"
	"slices"
	"testing"
)

func TestScanPHPLiterals(t *testing.T) {
	t.Parallel()

	src := `<?php
/**
 * header with a fake $assignment = 'nope';
 */
$single = 'it\'s a \\ path\n';  # trailing comment
$double = "tab\there \"quoted\" \$dollar";
$number = -15;
$yes = TRUE;
$no = false;
$nothing = null;
// $commented = 'x';
$spaced   =
	'multi line';
?>
$after = 'ignored';
`

	got, err := scanPHP([]byte(src))
	if err != nil {
		t.Fatalf("scanPHP returned error: %v", err)
	}

	if v := got.values["single"]; v.kind != phpString || v.str != `it's a \ path\n` {
		t.Fatalf("unexpected single-quoted value %+v", v)
	}
	if v := got.values["double"]; v.str != "tab\there \"quoted\" $dollar" {
		t.Fatalf("unexpected double-quoted value %q", v.str)
	}
	if v := got.values["number"]; v.kind != phpInt || v.num != -15 {
		t.Fatalf("unexpected number %+v", v)
	}
	if v := got.values["yes"]; !v.asBool() {
		t.Fatalf("expected TRUE to be true")
	}
	if v := got.values["no"]; v.kind != phpBool || v.asBool() {
		t.Fatalf("expected false, got %+v", v)
	}
	if v := got.values["nothing"]; v.kind != phpNull {
		t.Fatalf("expected null, got %+v", v)
	}
	if v := got.values["spaced"]; v.str != "multi line" {
		t.Fatalf("unexpected spaced value %q", v.str)
	}
	for _, name := range []string{"commented", "after", "assignment"} {
		if _, ok := got.values[name]; ok {
			t.Fatalf("did not expect %s to be read", name)
		}
	}
}

func TestScanPHPSkipsExpressionsAndControlFlow(t *testing.T) {
	t.Parallel()

	src := `<?php
$boarddir = dirname(__FILE__);
$cachedir = $boarddir . '/cache';
if (!file_exists($sourcedir) && file_exists($boarddir . '/Sources'))
	$sourcedir = $boarddir . '/Sources';
if (true) {
	$inner = 'a;b';
	$other = 2;
}
$db_type = 'sqlite';
`

	got, err := scanPHP([]byte(src))
	if err != nil {
		t.Fatalf("scanPHP returned error: %v", err)
	}

	if !slices.Equal(got.skipped, []string{"boarddir", "cachedir"}) {
		t.Fatalf("unexpected skipped names %v", got.skipped)
	}
	if len(got.values) != 1 || got.values["db_type"].str != "sqlite" {
		t.Fatalf("expected only db_type to be read, got %v", got.values)
	}
}

func TestScanPHPSkipsInterpolatedStrings(t *testing.T) {
	t.Parallel()

	src := `<?php
$user = 'smf';
$boarddir = "/home/$user/foro";
$db_passwd = "pa$word";
$sourcedir = "{$boarddir}/Sources";
$cachedir = "${boarddir}/cache";
$price = "costs $5 or \$user";
`

	got, err := scanPHP([]byte(src))
	if err != nil {
		t.Fatalf("scanPHP returned error: %v", err)
	}

	want := []string{"boarddir", "db_passwd", "sourcedir", "cachedir"}
	if !slices.Equal(got.skipped, want) {
		t.Fatalf("expected skipped %v, got %v", want, got.skipped)
	}
	for _, name := range want {
		if _, ok := got.values[name]; ok {
			t.Fatalf("expected %s not to be read as a literal", name)
		}
	}
	if v := got.values["price"]; v.str != "costs $5 or $user" {
		t.Fatalf("unexpected literal dollar handling %q", v.str)
	}
	if got.values["user"].str != "smf" {
		t.Fatalf("expected user to be read, got %+v", got.values["user"])
	}
}

func TestScanPHPDoubleQuotedEscapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		want string
	}{
		{name: "hex", src: `"\x41\x6a!"`, want: "Aj!"},
		{name: "hex without digits", src: `"\xyz"`, want: `\xyz`},
		{name: "octal", src: `"\101\60\0"`, want: "A0\x00"},
		{name: "unicode", src: `"caf\u{e9} \u{1F600}"`, want: "caf\u00e9 \U0001F600"},
		{name: "unicode unterminated", src: `"\u{41"`, want: `\u{41`},
		{name: "unknown escape", src: `"C:\q"`, want: `C:\q`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := scanPHP([]byte("<?php $value = " + tc.src + ";"))
			if err != nil {
				t.Fatalf("scanPHP returned error: %v", err)
			}
			v, ok := got.values["value"]
			if !ok {
				t.Fatalf("expected value to be read, skipped=%v", got.skipped)
			}
			if v.str != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, v.str)
			}
		})
	}
}

func TestScanPHPLastAssignmentWins(t *testing.T) {
	t.Parallel()

	got, err := scanPHP([]byte("<?php $mbname = 'one'; $mbname = 'two';"))
	if err != nil {
		t.Fatalf("scanPHP returned error: %v", err)
	}
	if got.values["mbname"].str != "two" {
		t.Fatalf("expected last assignment, got %q", got.values["mbname"].str)
	}
}

func TestScanPHPUnterminatedComment(t *testing.T) {
	t.Parallel()

	if _, err := scanPHP([]byte("<?php /* never closed")); !errors.Is(err, ErrMalformedPHP) {
		t.Fatalf("expected ErrMalformedPHP, got %v", err)
	}
}

func TestPHPValueConversions(t *testing.T) {
	t.Parallel()

	if n, err := (phpValue{kind: phpString, str: " 7 "}).asInt(); err != nil || n != 7 {
		t.Fatalf("expected 7, got %d (%v)", n, err)
	}
	if _, err := (phpValue{kind: phpString, str: "seven"}).asInt(); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
	if (phpValue{kind: phpString, str: "0"}).asBool() {
		t.Fatalf("expected \"0\" to be false")
	}
	if !(phpValue{kind: phpInt, num: 1}).asBool() {
		t.Fatalf("expected 1 to be true")
	}
	if s := (phpValue{kind: phpInt, num: 3306}).asString(); s != "3306" {
		t.Fatalf("expected 3306, got %q", s)
	}
}
