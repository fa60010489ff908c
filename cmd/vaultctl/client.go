package main

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

func httpClient() *resty.Client {
	c := resty.New().
		SetBaseURL(apiFlag).
		SetTimeout(15 * time.Second)
	if tokenFlag != "" {
		c.SetAuthToken(tokenFlag)
	}
	return c
}

func getJSON(path string) ([]byte, error) {
	resp, err := httpClient().R().Get(path)
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

func postJSON(path string, payload interface{}) ([]byte, error) {
	resp, err := httpClient().R().SetBody(payload).Post(path)
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

func deleteJSON(path string) ([]byte, error) {
	resp, err := httpClient().R().Delete(path)
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

func checkResponse(resp *resty.Response) ([]byte, error) {
	if resp.IsError() {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}
