// Package azure forwards pixel profiles and events to Azure Storage: a queue
// for fire-and-forget consumers and tables as a lightweight warehouse.
package azure

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

var retryStatusCodes = []int{408, 429, 500, 502, 503, 504}

// NewQueueClient connects to the named queue with bounded retries.
func NewQueueClient(connStr, queue string) (*azqueue.QueueClient, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 30 * time.Second,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	return azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
}

// NewTableClients returns clients for the users and events tables.
func NewTableClients(connStr, usersTable, eventsTable string) (*aztables.Client, *aztables.Client, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, nil, err
	}
	return svc.NewClient(usersTable), svc.NewClient(eventsTable), nil
}

// EnsureTable creates the table unless it already exists.
func EnsureTable(ctx context.Context, client *aztables.Client) error {
	_, err := client.CreateTable(ctx, nil)
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusConflict {
		return nil
	}
	return err
}
