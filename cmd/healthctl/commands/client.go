package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// getJSON issues a GET against the healthd API and pretty-prints the response
func getJSON(path string) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

// postJSON issues a POST with a JSON body and pretty-prints the response
func postJSON(path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(serverURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

// loadFeaturesFile reads a JSON document of per-device feature vectors:
// {"device-1": {"temperature_mean": 42.1, ...}, ...}
func loadFeaturesFile(path string) (map[string]map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read features file: %w", err)
	}
	var features map[string]map[string]float64
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("failed to parse features file: %w", err)
	}
	return features, nil
}

// loadOutcomesFile reads a JSON document of per-device ground-truth health
// outcomes: {"device-1": 87.5, ...}
func loadOutcomesFile(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outcomes file: %w", err)
	}
	var outcomes map[string]float64
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return nil, fmt.Errorf("failed to parse outcomes file: %w", err)
	}
	return outcomes, nil
}
