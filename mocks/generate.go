// Package mocks holds gomock mocks of the collaborators of the bidding engine
package mocks

//go:generate mockgen -destination=mock_notifier.go -package=mocks github.com/delta/auction-house-server/notifications Notifier
//go:generate mockgen -destination=mock_audit.go -package=mocks github.com/delta/auction-house-server/audit Logger
//go:generate mockgen -destination=mock_publisher.go -package=mocks github.com/delta/auction-house-server/datastreams Publisher
