//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

package client

import (
	"sirena/internal/cli"
	"sirena/pkg/proto"
	"sirena/pkg/proto/envelope"
)

// Errors of the call itself, shared with the orchestrator.
var (
	ErrEmptyResponse      error = cli.ErrEmptyResponse
	ErrMaxRetriesExceeded error = cli.ErrMaxRetriesExceeded
	ErrConfig             error = cli.ErrConfig
	ErrPoolClosed         error = cli.ErrPoolClosed
	// ErrEncryptionKey is the key rejection of a handshake or of an answer
	// carrying code -42.
	ErrEncryptionKey error = cli.ErrKeyRejected
)

// Domain errors carried by gateway answers, matched with errors.Is against
// the error returned by Response.Err.
var (
	ErrGateway                error
	ErrMessageTimedOut        error
	ErrSystem                 error
	ErrInternal               error
	ErrPultBusy               error
	ErrParseRequest           error
	ErrForbiddenIpAddress     error
	ErrOrderNotFound          error
	ErrPnrBusy                error
	ErrPnrWaitingForPayment   error
	ErrPnrNotBookedOnline     error
	ErrPnrAndSurnameDontMatch error
	ErrPnrChanged             error
	ErrPnrHasSvc              error
	ErrPnrAlreadyUnArchived   error
	ErrAccessToPnrDenied      error
	ErrPassengerNotFound      error
	ErrSegmentNotFound        error
	ErrTicketNotExist         error
	ErrTicketOrDocNotFound    error
	ErrDateNotControl         error
	ErrDuplicateSsr           error
	ErrDuplicateSvc           error
	ErrInvalidNumberOfSsr     error
	ErrSsrToInactiveSegment   error
	ErrWrongDocumentCountry   error
	ErrWrongPaymentDocument   error
	ErrMoreThanOneSubclass    error
	ErrOperationCost          error
	ErrReceiptNotFound        error
	ErrInvalidFlightNumber    error
	ErrUnableToDeleteSegment  error
	ErrUnableToCancelServices error
	ErrSeatMapTurnedOff       error
	ErrAirlineCodeUnknown     error
	ErrChangeNotPermitted     error
	ErrInsuranceExists        error
	ErrUnusedSegmentsReturn   error
	ErrEmdCancelDenied        error
)

var errorMapping map[string]error

// codeError is the kind of a domain error. Retryable ones may succeed when
// the same request is sent again later.
type codeError struct {
	what      string
	retryable bool
}

func (e *codeError) Error() string {
	return e.what
}

func (e *codeError) Retryable() bool {
	return e.retryable
}

// DomainError is the error answer of a gateway method. Kind is one of the
// package error variables and Cause is the error node of the answer.
type DomainError struct {
	Kind  error
	Cause *envelope.GatewayError
}

func (e *DomainError) Error() string {
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *DomainError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

func (e *DomainError) Code() string {
	return e.Cause.Code
}

func (e *DomainError) Retryable() bool {
	r, ok := e.Kind.(cli.IRetryable)
	return ok && r.Retryable()
}

func init() {
	ErrGateway = &codeError{what: "unhandled gateway error"}
	ErrMessageTimedOut = &codeError{what: "message timed out", retryable: true}
	ErrSystem = &codeError{what: "system error"}
	ErrInternal = &codeError{what: "internal error"}
	ErrPultBusy = &codeError{what: "no free pult", retryable: true}
	ErrParseRequest = &codeError{what: "request parse error"}
	ErrForbiddenIpAddress = &codeError{what: "forbidden ip address"}
	ErrOrderNotFound = &codeError{what: "order not found"}
	ErrPnrBusy = &codeError{what: "pnr busy", retryable: true}
	ErrPnrWaitingForPayment = &codeError{what: "pnr waiting for payment confirmation"}
	ErrPnrNotBookedOnline = &codeError{what: "pnr not booked online"}
	ErrPnrAndSurnameDontMatch = &codeError{what: "pnr and surname do not match"}
	ErrPnrChanged = &codeError{what: "pnr was changed"}
	ErrPnrHasSvc = &codeError{what: "pnr has services"}
	ErrPnrAlreadyUnArchived = &codeError{what: "pnr already unarchived"}
	ErrAccessToPnrDenied = &codeError{what: "access to pnr denied"}
	ErrPassengerNotFound = &codeError{what: "passenger not found"}
	ErrSegmentNotFound = &codeError{what: "segment not found"}
	ErrTicketNotExist = &codeError{what: "ticket does not exist"}
	ErrTicketOrDocNotFound = &codeError{what: "ticket or document number not found"}
	ErrDateNotControl = &codeError{what: "date not under control"}
	ErrDuplicateSsr = &codeError{what: "duplicate ssr"}
	ErrDuplicateSvc = &codeError{what: "duplicate service"}
	ErrInvalidNumberOfSsr = &codeError{what: "invalid number of ssr"}
	ErrSsrToInactiveSegment = &codeError{what: "cannot add ssr to inactive segment"}
	ErrWrongDocumentCountry = &codeError{what: "wrong document issue country"}
	ErrWrongPaymentDocument = &codeError{what: "wrong payment document type"}
	ErrMoreThanOneSubclass = &codeError{what: "more than one subclass"}
	ErrOperationCost = &codeError{what: "operation cost or currency error"}
	ErrReceiptNotFound = &codeError{what: "receipt not found"}
	ErrInvalidFlightNumber = &codeError{what: "invalid flight number"}
	ErrUnableToDeleteSegment = &codeError{what: "unable to delete segment"}
	ErrUnableToCancelServices = &codeError{what: "unable to cancel services"}
	ErrSeatMapTurnedOff = &codeError{what: "seat map turned off"}
	ErrAirlineCodeUnknown = &codeError{what: "unable to determine airline code"}
	ErrChangeNotPermitted = &codeError{what: "change not permitted"}
	ErrInsuranceExists = &codeError{what: "insurance exists"}
	ErrUnusedSegmentsReturn = &codeError{what: "unused segments must be returned"}
	ErrEmdCancelDenied = &codeError{what: "emd cancel denied"}

	errorMapping = map[string]error{
		proto.CodeAsymDecryptFailed: ErrEncryptionKey,
		"-1":                        ErrMessageTimedOut,
		"4006":                      ErrDateNotControl,
		"7505":                      ErrTicketNotExist,
		"25235":                     ErrDuplicateSsr,
		"28067":                     ErrPnrAlreadyUnArchived,
		"28151":                     ErrWrongDocumentCountry,
		"31054":                     ErrSystem,
		"31112":                     ErrTicketOrDocNotFound,
		"31196":                     ErrUnableToCancelServices,
		"31198":                     ErrInvalidNumberOfSsr,
		"31211":                     ErrDuplicateSvc,
		"33000":                     ErrInternal,
		"33002":                     ErrPultBusy,
		"33003":                     ErrParseRequest,
		"33009":                     ErrParseRequest,
		"33010":                     ErrParseRequest,
		"33011":                     ErrOrderNotFound,
		"33029":                     ErrWrongPaymentDocument,
		"33033":                     ErrPnrNotBookedOnline,
		"33034":                     ErrPnrAndSurnameDontMatch,
		"33036":                     ErrMoreThanOneSubclass,
		"33041":                     ErrPnrBusy,
		"33044":                     ErrPnrWaitingForPayment,
		"33057":                     ErrOperationCost,
		"33080":                     ErrReceiptNotFound,
		"33092":                     ErrAccessToPnrDenied,
		"33099":                     ErrPassengerNotFound,
		"33158":                     ErrInvalidNumberOfSsr,
		"33177":                     ErrSegmentNotFound,
		"33381":                     ErrPnrChanged,
		"33484":                     ErrSsrToInactiveSegment,
		"33494":                     ErrForbiddenIpAddress,
		"33521":                     ErrPnrHasSvc,
		"33529":                     ErrInvalidFlightNumber,
		"33553":                     ErrUnableToDeleteSegment,
		"37021":                     ErrSeatMapTurnedOff,
		"65108":                     ErrAirlineCodeUnknown,
		"65148":                     ErrUnusedSegmentsReturn,
		"65167":                     ErrChangeNotPermitted,
		"65538":                     ErrInsuranceExists,
		"65572":                     ErrInsuranceExists,
		"101171":                    ErrEmdCancelDenied,
	}
}

// domainError maps the error node of an answer. An answer level node that
// is not a key rejection and carries no known code is a refused caller.
func domainError(ge *envelope.GatewayError) error {
	if ge == nil {
		return nil
	}
	if kind, ok := errorMapping[ge.Code]; ok {
		return &DomainError{Kind: kind, Cause: ge}
	}
	if ge.AnswerLevel {
		return &DomainError{Kind: ErrForbiddenIpAddress, Cause: ge}
	}
	return &DomainError{Kind: ErrGateway, Cause: ge}
}
