package main

func bar() {
	counter = counter * 2
}
