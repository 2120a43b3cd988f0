// Command digestbot runs the chat digest bot and its maintenance tasks.
package main

func main() {
	Execute()
}
