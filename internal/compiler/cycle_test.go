package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCycles_NoCycles(t *testing.T) {
	decls := []RecordDecl{
		{Name: "A", Fields: []FieldDecl{field("B", "B"), field("Cs", "[]C")}},
		{Name: "B", Fields: []FieldDecl{field("C", "C?")}},
		{Name: "C", Fields: []FieldDecl{field("ID", "int")}},
	}
	cycles := AnalyzeCycles(decls)
	assert.NotNil(t, cycles)
	assert.Empty(t, cycles)
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	decls := []RecordDecl{{Name: "Node", Fields: []FieldDecl{field("Children", "[]Node")}}}

	cycles := AnalyzeCycles(decls)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"Node", "Node"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "contains itself")
}

func TestAnalyzeCycles_ThreeRecords(t *testing.T) {
	decls := []RecordDecl{
		{Name: "C", Fields: []FieldDecl{field("A", "A")}},
		{Name: "A", Fields: []FieldDecl{field("B", "B")}},
		{Name: "B", Fields: []FieldDecl{field("C", "C")}},
		{Name: "D", Fields: []FieldDecl{field("A", "A")}},
	}

	cycles := AnalyzeCycles(decls)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, cycles[0].Path)
	assert.Equal(t, "records contain each other: A -> B -> C -> A", cycles[0].Message)
}

func TestAnalyzeCycles_Deterministic(t *testing.T) {
	decls := []RecordDecl{
		{Name: "X", Fields: []FieldDecl{field("Y", "Y")}},
		{Name: "Y", Fields: []FieldDecl{field("X", "X")}},
		{Name: "P", Fields: []FieldDecl{field("Q", "Q")}},
		{Name: "Q", Fields: []FieldDecl{field("P", "P")}},
	}

	first := AnalyzeCycles(decls)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AnalyzeCycles(decls))
	}
	require.Len(t, first, 2)
	assert.Equal(t, []string{"P", "Q", "P"}, first[0].Path)
	assert.Equal(t, []string{"X", "Y", "X"}, first[1].Path)
}
