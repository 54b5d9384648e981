package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Cron entrypoint for the nightly auto-miss sweep. Calls the running API so
// the sweep shares its transition guards and audit logging with the server.

type sweepRequest struct {
	StudentID      string `json:"student_id,omitempty"`
	AutoReschedule bool   `json:"auto_reschedule"`
}

type sweepEnvelope struct {
	Data struct {
		Missed      []json.RawMessage `json:"missed"`
		Rescheduled []json.RawMessage `json:"rescheduled"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		baseURL        string
		apiPrefix      string
		studentID      string
		autoReschedule bool
		timeout        time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&apiPrefix, "prefix", "/api/v1", "API route prefix")
	flag.StringVar(&studentID, "student", "", "Limit the sweep to one student")
	flag.BoolVar(&autoReschedule, "auto-reschedule", true, "Reschedule missed sessions into the next available slots")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	payload, err := json.Marshal(sweepRequest{StudentID: studentID, AutoReschedule: autoReschedule})
	if err != nil {
		log.Fatalf("failed to encode request: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+apiPrefix+"/sessions/sweep", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("sweep request failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope sweepEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		log.Fatalf("failed to decode response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		code := resp.Status
		if envelope.Error != nil {
			code = fmt.Sprintf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		log.Printf("sweep failed: %s", code)
		os.Exit(1)
	}

	fmt.Printf("sweep complete: %d missed, %d rescheduled\n",
		len(envelope.Data.Missed), len(envelope.Data.Rescheduled))
}
