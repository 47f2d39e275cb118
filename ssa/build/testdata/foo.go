package main

var counter int

func foo() {
	counter++
}
