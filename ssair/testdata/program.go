package main

type node struct {
	next *node
	val  int
}

type shape interface {
	area() float64
}

type square struct{ side float64 }

func (s *square) area() float64 { return s.side * s.side }

func makeNode(v int) *node {
	return &node{val: v}
}

func link(a, b *node) {
	a.next = b
}

func describe(s shape) float64 {
	return s.area()
}

func apply(f func(int) int, x int) int {
	return f(x)
}

func double(x int) int { return x * 2 }

func main() {
	a := makeNode(1)
	b := makeNode(2)
	link(a, b)
	_ = a.next

	var s shape = &square{side: 3}
	describe(s)

	apply(double, 21)
}
