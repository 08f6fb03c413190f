// Test client: streams a local audio file over the conversation
// WebSocket and saves the synthesized reply audio to disk.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	// Flags
	serverURL := flag.String("server", "ws://localhost:3001", "Server base URL")
	conversationID := flag.String("id", "test-conversation", "Conversation identifier")
	lang := flag.String("language", "ar", "Language tag (ar or en)")
	audioFile := flag.String("file", "examples/user.pcm", "Audio file to send (raw linear16 PCM or WAV, 16kHz mono)")
	outFile := flag.String("out", "reply.mp3", "File to write the assistant's audio reply to")
	flag.Parse()

	wsURL := fmt.Sprintf("%s/ws/conversation/%s?language=%s", *serverURL, *conversationID, *lang)
	log.Printf("🔌 Connecting to %s...", wsURL)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("✅ Connected!")

	out, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer out.Close()

	// Handle interrupt
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})

	// Read reply audio frames from the server
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return
			}

			switch messageType {
			case websocket.BinaryMessage:
				log.Printf("🔊 Received audio frame: %d bytes", len(message))
				out.Write(message)
			case websocket.TextMessage:
				log.Printf("📝 Server message: %s", string(message))
			}
		}
	}()

	// Load and send audio file
	log.Printf("📤 Sending audio file: %s", *audioFile)

	audioData, err := loadAudioFile(*audioFile)
	if err != nil {
		log.Fatalf("Failed to load audio: %v", err)
	}

	// Send audio in chunks (simulating real-time streaming)
	chunkSize := 3200 // 100ms at 16kHz
	for i := 0; i < len(audioData); i += chunkSize {
		end := i + chunkSize
		if end > len(audioData) {
			end = len(audioData)
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, audioData[i:end]); err != nil {
			log.Printf("Send error: %v", err)
			break
		}

		// Simulate real-time streaming pace
		time.Sleep(100 * time.Millisecond)
	}

	log.Println("✅ Audio sent, waiting for reply...")

	// Wait for response or interrupt
	select {
	case <-done:
		log.Println("Connection closed")
	case <-interrupt:
		log.Println("\n👋 Interrupted, sending stop...")
		conn.WriteMessage(websocket.TextMessage, []byte("stop"))
		<-done
	case <-time.After(60 * time.Second):
		log.Println("⏰ Timeout waiting for reply")
	}

	log.Printf("💾 Reply audio written to %s", *outFile)
}

// loadAudioFile loads a PCM or WAV file and returns raw PCM bytes
func loadAudioFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Check if it's a WAV file (starts with "RIFF")
	if len(data) > 44 && string(data[0:4]) == "RIFF" {
		// Skip WAV header (44 bytes for standard WAV)
		log.Println("📁 Detected WAV file, skipping header")
		return data[44:], nil
	}

	// Assume raw PCM
	log.Println("📁 Detected raw PCM file")
	return data, nil
}
