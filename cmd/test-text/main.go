// Test client for the /chat endpoint: one text turn, no voice.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"
)

func main() {
	serverURL := flag.String("server", "http://localhost:3001", "Server base URL")
	message := flag.String("message", "مرحبا", "Message to send")
	lang := flag.String("language", "ar", "Language tag (ar or en)")
	flag.Parse()

	body, err := json.Marshal(map[string]string{
		"message":  *message,
		"language": *lang,
	})
	if err != nil {
		log.Fatalf("Failed to marshal request: %v", err)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(*serverURL+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var chatResp struct {
		Response string `json:"response"`
		Language string `json:"language"`
		Detail   string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		log.Fatalf("Failed to parse response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("❌ Server error (%d): %s", resp.StatusCode, chatResp.Detail)
	}

	log.Printf("💬 [%s] %s", chatResp.Language, chatResp.Response)
}
