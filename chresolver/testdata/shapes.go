package main

type shape interface {
	area() float64
}

type square struct{ side float64 }

func (s *square) area() float64 { return s.side * s.side }

func (s *square) perimeter() float64 { return 4 * s.side }

type circle struct{ radius float64 }

func (c *circle) area() float64 { return 3.14159 * c.radius * c.radius }

func describe(s shape) float64 {
	return s.area()
}

func main() {
	shapes := []shape{&square{side: 2}, &circle{radius: 3}}
	for _, s := range shapes {
		describe(s)
	}
}
