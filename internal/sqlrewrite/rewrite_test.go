package sqlrewrite

import "testing"

func TestRewriteEmbeddedPassthrough(t *testing.T) {
	sql, args, err := Rewrite("SELECT * FROM jobs WHERE id = ? AND status = ?", []any{"a", "b"}, DialectEmbedded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sql != "SELECT * FROM jobs WHERE id = ? AND status = ?" {
		t.Fatalf("expected passthrough, got %q", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestRewriteServerRenumbers(t *testing.T) {
	sql, _, err := Rewrite("SELECT * FROM jobs WHERE id = ? AND status = ?", []any{"a", "b"}, DialectServer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT * FROM jobs WHERE id = $1 AND status = $2"
	if sql != want {
		t.Fatalf("expected %q, got %q", want, sql)
	}
}

func TestRewriteIgnoresPlaceholderInsideSingleQuotedLiteral(t *testing.T) {
	sql, args, err := Rewrite("SELECT '?' AS literal, col FROM t WHERE id = ?", []any{"id1"}, DialectServer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT '?' AS literal, col FROM t WHERE id = $1"
	if sql != want {
		t.Fatalf("expected %q, got %q", want, sql)
	}
	if len(args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(args))
	}
}

func TestRewriteIgnoresPlaceholderInsideLineComment(t *testing.T) {
	sql, _, err := Rewrite("SELECT col FROM t -- what about ?\nWHERE id = ?", []any{"id1"}, DialectServer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT col FROM t -- what about ?\nWHERE id = $1"
	if sql != want {
		t.Fatalf("expected %q, got %q", want, sql)
	}
}

func TestRewriteIgnoresPlaceholderInsideBlockComment(t *testing.T) {
	sql, _, err := Rewrite("SELECT col FROM t /* ? */ WHERE id = ?", []any{"id1"}, DialectServer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT col FROM t /* ? */ WHERE id = $1"
	if sql != want {
		t.Fatalf("expected %q, got %q", want, sql)
	}
}

func TestRewriteArgCountMismatch(t *testing.T) {
	if _, _, err := Rewrite("SELECT * FROM t WHERE id = ?", []any{"a", "b"}, DialectServer); err != ErrArgCountMismatch {
		t.Fatalf("expected ErrArgCountMismatch, got %v", err)
	}
	if _, _, err := Rewrite("SELECT * FROM t WHERE id = ?", nil, DialectEmbedded); err != ErrArgCountMismatch {
		t.Fatalf("expected ErrArgCountMismatch, got %v", err)
	}
}

func TestNormalizeRowLowercasesAndDecodesBytes(t *testing.T) {
	row := NormalizeRow([]string{"ID", "Ticker", "Notes"}, []any{int64(1), []byte("AAPL"), nil})
	if row["id"] != int64(1) {
		t.Fatalf("expected id=1, got %v", row["id"])
	}
	if row["ticker"] != "AAPL" {
		t.Fatalf("expected ticker=AAPL, got %v", row["ticker"])
	}
	if row["notes"] != nil {
		t.Fatalf("expected nil notes, got %v", row["notes"])
	}
}
