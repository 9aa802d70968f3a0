package db

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	type CustomInt int
	type S struct {
		I   int        `db:"I"`
		PI  *int       `db:"PI"`
		CI  CustomInt  `db:"CI"`
		PCI *CustomInt `db:"PCI"`
		B   bool       `db:"B"`
		PB  *bool      `db:"PB"`

		NoTag int
	}
	type Nested struct {
		S  S  `db:"S"`
		PS *S `db:"PS"`

		NoTag S
	}

	names, paths := getColumnNamesAndPaths(reflect.TypeOf(Nested{}), nil, nil)
	assert.Equal(t, []columnName{
		{"S", "I"}, {"S", "PI"},
		{"S", "CI"}, {"S", "PCI"},
		{"S", "B"}, {"S", "PB"},
		{"PS", "I"}, {"PS", "PI"},
		{"PS", "CI"}, {"PS", "PCI"},
		{"PS", "B"}, {"PS", "PB"},
	}, names)
	assert.Equal(t, []fieldPath{
		{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5},
		{1, 0}, {1, 1}, {1, 2}, {1, 3}, {1, 4}, {1, 5},
	}, paths)
	assert.True(t, len(names) == len(paths))

	testStruct := Nested{}
	for i, path := range paths {
		val, field := followPathThroughStructs(reflect.ValueOf(&testStruct), path)
		assert.True(t, val.IsValid())
		assert.True(t, strings.Contains(strings.Join(names[i], "."), field.Name))
	}
}

func TestCompileQuery(t *testing.T) {
	type Entry struct {
		UserID string `db:"user_id"`
		Title  string `db:"book_title"`
		Author string `db:"author"`
	}

	t.Run("plain columns", func(t *testing.T) {
		compiled := compileQuery(`SELECT $columns FROM tbr`, reflect.TypeOf(Entry{}))
		assert.Equal(t, `SELECT user_id, book_title, author FROM tbr`, compiled.query)
	})
	t.Run("prefixed columns", func(t *testing.T) {
		compiled := compileQuery(`SELECT $columns{tbr} FROM tbr`, reflect.TypeOf(Entry{}))
		assert.Equal(t, `SELECT tbr.user_id, tbr.book_title, tbr.author FROM tbr`, compiled.query)
	})
	t.Run("no placeholder", func(t *testing.T) {
		compiled := compileQuery(`SELECT book_title FROM tbr`, reflect.TypeOf(""))
		assert.Equal(t, `SELECT book_title FROM tbr`, compiled.query)
	})
}
