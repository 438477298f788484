package boundplot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// MeshNode is a 2-D point. Nodes are referred to by their position in
// Mesh.Nodes.
type MeshNode struct {
	X float64
	Y float64
}

// MeshElement is a closed polygon given as node indices. Edges join
// consecutive indices and the last index back to the first.
type MeshElement []int

type Mesh struct {
	Nodes    []MeshNode
	Elements []MeshElement
}

// Edge is a segment between two mesh nodes.
type Edge struct {
	From MeshNode
	To   MeshNode
}

// ParseRational parses a plain float or a "num/den" fraction. The result must
// be finite, so "1/0" and "nan" are rejected.
func ParseRational(token string) (float64, error) {
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		num, den, found := strings.Cut(token, "/")
		if !found {
			return 0, fmt.Errorf("%q is neither a number nor a fraction", token)
		}

		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("bad numerator in %q", token)
		}

		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("bad denominator in %q", token)
		}

		if d == 0 {
			return 0, fmt.Errorf("zero denominator in %q", token)
		}

		value = n / d
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%q is not finite", token)
	}

	return value, nil
}

// ParseMesh reads a mesh description. Lines starting with 'n' declare a node
// ("n x y"), lines starting with 'e' declare an element ("e i0 i1 ... ik").
// All other lines are ignored. name is only used for error messages.
//
// Indices are not checked here since elements may come before the nodes they
// use; call Validate once the whole file is read.
func ParseMesh(name string, input io.Reader) (*Mesh, error) {
	mesh := &Mesh{
		Nodes:    make([]MeshNode, 0),
		Elements: make([]MeshElement, 0),
	}

	scanner := bufio.NewScanner(input)
	lineNum := 0
	for scanner.Scan() {
		lineNum++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line[1:])

		switch line[0] {
		case 'n':
			if len(fields) != 2 {
				return nil, &MalformedInputError{
					File: name,
					Line: lineNum,
					Err:  fmt.Errorf("node needs 2 coordinates, got %d", len(fields)),
				}
			}

			var coords [2]float64
			for i, field := range fields {
				value, err := ParseRational(field)
				if err != nil {
					return nil, &MalformedInputError{File: name, Line: lineNum, Token: field, Err: err}
				}
				coords[i] = value
			}

			mesh.Nodes = append(mesh.Nodes, MeshNode{X: coords[0], Y: coords[1]})
		case 'e':
			// Degenerate elements with fewer than 2 nodes are kept; they draw
			// nothing visible.
			element := make(MeshElement, len(fields))
			for i, field := range fields {
				index, err := strconv.Atoi(field)
				if err != nil {
					return nil, &MalformedInputError{File: name, Line: lineNum, Token: field, Err: errors.New("node index is not an integer")}
				}
				element[i] = index
			}

			mesh.Elements = append(mesh.Elements, element)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &MalformedInputError{File: name, Line: lineNum, Err: err}
	}

	return mesh, nil
}

// Validate checks that every element only references declared nodes.
func (m *Mesh) Validate() error {
	for i, element := range m.Elements {
		for _, index := range element {
			if index < 0 || index >= len(m.Nodes) {
				return fmt.Errorf("element %d references node %d, mesh has %d nodes", i, index, len(m.Nodes))
			}
		}
	}

	return nil
}

// Edges returns the polygon edges of every element in order. The mesh must be
// valid.
func (m *Mesh) Edges() []Edge {
	edges := make([]Edge, 0)
	for _, element := range m.Elements {
		num := len(element)
		for i := range element {
			edges = append(edges, Edge{
				From: m.Nodes[element[i]],
				To:   m.Nodes[element[(i+1)%num]],
			})
		}
	}
	return edges
}

// LoadMesh reads and validates the mesh file at path.
func LoadMesh(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MalformedInputError{File: path, Err: err}
	}
	defer f.Close()

	mesh, err := ParseMesh(path, f)
	if err != nil {
		return nil, err
	}

	if err := mesh.Validate(); err != nil {
		return nil, &MalformedInputError{File: path, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"tag":      "LoadMesh",
		"path":     path,
		"nodes":    len(mesh.Nodes),
		"elements": len(mesh.Elements),
	}).Info("loaded mesh")

	return mesh, nil
}

// DiracPoint is the point highlighted on the mesh inset.
type DiracPoint struct {
	X float64
	Y float64
}

// ParseDiracPoint parses the two --dirac-point tokens.
func ParseDiracPoint(tokens []string) (*DiracPoint, error) {
	if len(tokens) != 2 {
		return nil, &StartupValidationError{
			Arg: "--dirac-point",
			Msg: fmt.Sprintf("expected 2 coordinates, got %d", len(tokens)),
		}
	}

	var coords [2]float64
	for i, token := range tokens {
		value, err := ParseRational(token)
		if err != nil {
			return nil, &MalformedInputError{File: "--dirac-point", Token: token, Err: err}
		}
		coords[i] = value
	}

	return &DiracPoint{X: coords[0], Y: coords[1]}, nil
}
