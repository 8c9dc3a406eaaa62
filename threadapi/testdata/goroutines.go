package main

import "sync"

func worker(wg *sync.WaitGroup, out chan<- int) {
	defer wg.Done()
	out <- 1
}

func main() {
	var wg sync.WaitGroup
	out := make(chan int, 4)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go worker(&wg, out)
	}

	wg.Wait()
	close(out)
}
