package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefusedReason explains why input was refused before any state changed.
type RefusedReason int

const (
	RefusedBadFormat RefusedReason = iota + 1
	RefusedEmpty
	RefusedCapacity
	RefusedAlreadyMember
	RefusedNotMember
)

// String returns the wire name of the reason.
func (r RefusedReason) String() string {
	switch r {
	case RefusedBadFormat:
		return "bad formatting"
	case RefusedEmpty:
		return "empty"
	case RefusedCapacity:
		return "room is at capacity"
	case RefusedAlreadyMember:
		return "client is already a member"
	case RefusedNotMember:
		return "client is not a member"
	default:
		return "unknown refusal"
	}
}

// FailureReason classifies storage-access faults.
type FailureReason int

const (
	FailureAccessWrite FailureReason = iota + 1
	FailureCollision
	FailureAccessRead
)

// String returns the wire name of the fault.
func (r FailureReason) String() string {
	switch r {
	case FailureAccessWrite:
		return "storage write failed"
	case FailureCollision:
		return "collision while appending to storage"
	case FailureAccessRead:
		return "storage read failed"
	default:
		return "unknown failure"
	}
}

// Error lets a FailureReason travel as an error value.
func (r FailureReason) Error() string { return r.String() }

// RegistrationKind tags a RegistrationStatus.
type RegistrationKind int

const (
	RegistrationCreated RegistrationKind = iota + 1
	RegistrationRefused
	RegistrationFailed
)

// RegistrationStatus is the outcome of a registration attempt.
type RegistrationStatus struct {
	Kind    RegistrationKind
	Refused RefusedReason
	Field   string
	Failure FailureReason
}

// RegistrationOK reports a created user.
func RegistrationOK() RegistrationStatus {
	return RegistrationStatus{Kind: RegistrationCreated}
}

// RegistrationRefusal reports input refused for field.
func RegistrationRefusal(reason RefusedReason, field string) RegistrationStatus {
	return RegistrationStatus{Kind: RegistrationRefused, Refused: reason, Field: field}
}

// RegistrationFailure reports a storage fault during registration.
func RegistrationFailure(reason FailureReason) RegistrationStatus {
	return RegistrationStatus{Kind: RegistrationFailed, Failure: reason}
}

// String renders the status for logs and error bodies.
func (s RegistrationStatus) String() string {
	switch s.Kind {
	case RegistrationCreated:
		return "CREATED"
	case RegistrationRefused:
		return fmt.Sprintf("REFUSED(%s, %s)", s.Refused, s.Field)
	case RegistrationFailed:
		return fmt.Sprintf("FAILED(%s)", s.Failure)
	default:
		return "UNKNOWN"
	}
}

// LoginFailureKind separates credential mismatches from internal faults.
type LoginFailureKind int

const (
	LoginUserFailure LoginFailureKind = iota + 1
	LoginInternal
)

// LoginFailure never says whether the username or the password was wrong.
type LoginFailure struct {
	Kind   LoginFailureKind
	Reason FailureReason
}

// LoginStatus is either Passed or Failed(LoginFailure).
type LoginStatus struct {
	Passed  bool
	Failure LoginFailure
}

// LoginPassed reports matching credentials.
func LoginPassed() LoginStatus { return LoginStatus{Passed: true} }

// LoginRejected reports an unknown user or a wrong password.
func LoginRejected() LoginStatus {
	return LoginStatus{Failure: LoginFailure{Kind: LoginUserFailure}}
}

// LoginFault reports a storage or token fault during login.
func LoginFault(reason FailureReason) LoginStatus {
	return LoginStatus{Failure: LoginFailure{Kind: LoginInternal, Reason: reason}}
}

// String renders the status for logs and error bodies.
func (s LoginStatus) String() string {
	if s.Passed {
		return "Passed"
	}
	if s.Failure.Kind == LoginInternal {
		return fmt.Sprintf("Failed(Internal(%s))", s.Failure.Reason)
	}
	return "Failed(UserFailure)"
}

// RejectionKind tags a RoomRejection.
type RejectionKind int

const (
	RejectUnknownRoom RejectionKind = iota + 1
	RejectUnknownUser
	RejectRefused
)

const (
	UnknownRoomMsg = "the room with this id is not found"
	UnknownUserMsg = "the user with this id is not found"
)

// RoomRejection is a terminal, room-level refusal of a request.
type RoomRejection struct {
	Kind   RejectionKind
	Reason RefusedReason
}

// UnknownRoom rejects a request naming a room that does not exist.
func UnknownRoom() RoomRejection { return RoomRejection{Kind: RejectUnknownRoom} }

// UnknownUser rejects a request naming a client that does not exist.
func UnknownUser() RoomRejection { return RoomRejection{Kind: RejectUnknownUser} }

// Reject refuses a request for reason.
func Reject(reason RefusedReason) RoomRejection {
	return RoomRejection{Kind: RejectRefused, Reason: reason}
}

// String renders the rejection.
func (r RoomRejection) String() string {
	switch r.Kind {
	case RejectUnknownRoom:
		return UnknownRoomMsg
	case RejectUnknownUser:
		return UnknownUserMsg
	default:
		return fmt.Sprintf("the room join request has been rejected: %s", r.Reason)
	}
}

// RoomErrorKind tags a RoomError.
type RoomErrorKind int

const (
	RoomUnacceptable RoomErrorKind = iota + 1
	RoomRefused
	RoomInternal
)

// RoomError is returned by room creation.
type RoomError struct {
	Kind      RoomErrorKind
	Message   string
	Rejection RoomRejection
	Failure   FailureReason
}

// Unacceptable reports room input that breaks a rule, described by msg.
func Unacceptable(msg string) *RoomError {
	return &RoomError{Kind: RoomUnacceptable, Message: msg}
}

// RoomRefusal wraps a rejection as a room error.
func RoomRefusal(r RoomRejection) *RoomError {
	return &RoomError{Kind: RoomRefused, Rejection: r}
}

// RoomFailure reports a storage fault while creating a room.
func RoomFailure(reason FailureReason) *RoomError {
	return &RoomError{Kind: RoomInternal, Failure: reason}
}

// Error renders the room error.
func (e *RoomError) Error() string {
	switch e.Kind {
	case RoomUnacceptable:
		return "UNACCEPTABLE: " + e.Message
	case RoomRefused:
		return "REFUSED: " + e.Rejection.String()
	default:
		return "INTERNALERROR: " + e.Failure.String()
	}
}

// RoomCreation reports the outcome of CreateRoom. Handle is set only when
// the room was created.
type RoomCreation struct {
	Err    *RoomError
	Handle *uuid.UUID
}

// Created reports whether the room exists now.
func (c RoomCreation) Created() bool { return c.Err == nil && c.Handle != nil }

// JoinKind tags a JoinOutput.
type JoinKind int

const (
	JoinSuccess JoinKind = iota + 1
	JoinRejected
	JoinFailed
)

// JoinOutput is the classified result of a join request.
type JoinOutput struct {
	Kind      JoinKind
	Rejection RoomRejection
	Failure   FailureReason
}

// JoinOK reports an admitted member.
func JoinOK() JoinOutput { return JoinOutput{Kind: JoinSuccess} }

// JoinRejection reports a join refused for r.
func JoinRejection(r RoomRejection) JoinOutput {
	return JoinOutput{Kind: JoinRejected, Rejection: r}
}

// JoinFailure reports a storage fault during a join.
func JoinFailure(reason FailureReason) JoinOutput {
	return JoinOutput{Kind: JoinFailed, Failure: reason}
}

// String renders the join outcome.
func (j JoinOutput) String() string {
	switch j.Kind {
	case JoinSuccess:
		return "Success"
	case JoinRejected:
		return "Rejected(" + j.Rejection.String() + ")"
	default:
		return "Failed(" + j.Failure.String() + ")"
	}
}

// AbortKind tags an AbortReason.
type AbortKind int

const (
	AbortInternal AbortKind = iota + 1
	AbortExternal
	AbortUnacceptable
)

// AbortReason explains an aborted presence transition.
type AbortReason struct {
	Kind      AbortKind
	Failure   FailureReason
	Refused   RefusedReason
	Rejection RoomRejection
}

// String renders the abort reason.
func (a AbortReason) String() string {
	switch a.Kind {
	case AbortInternal:
		return "internal: " + a.Failure.String()
	case AbortExternal:
		return "unprocessable entity: " + a.Refused.String()
	default:
		return "unacceptable: " + a.Rejection.String()
	}
}

// ConnectionKind is the presence state reached by a signal.
type ConnectionKind int

const (
	StatusConnected ConnectionKind = iota + 1
	StatusPending
	StatusDisconnected
	StatusAborted
)

// String returns the lowercase state name used in frames and events.
func (k ConnectionKind) String() string {
	switch k {
	case StatusConnected:
		return "connected"
	case StatusPending:
		return "pending"
	case StatusDisconnected:
		return "disconnected"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ConnectionStatus carries an AbortReason only when Kind is StatusAborted.
type ConnectionStatus struct {
	Kind  ConnectionKind
	Abort AbortReason
}

// String renders the state, or the abort reason when aborted.
func (s ConnectionStatus) String() string {
	if s.Kind == StatusAborted {
		return "aborted: " + s.Abort.String()
	}
	return s.Kind.String()
}

// SignalCode selects the presence transition requested by a Signal.
type SignalCode int

const (
	SignalConnect SignalCode = iota + 1
	SignalDisconnect
	SignalPending
)

// SignalOutput is returned by every presence transition.
type SignalOutput struct {
	Status     ConnectionStatus
	SignaledAt time.Time
}

// Signaled reports a transition into kind at at.
func Signaled(kind ConnectionKind, at time.Time) SignalOutput {
	return SignalOutput{Status: ConnectionStatus{Kind: kind}, SignaledAt: at}
}

// Aborted reports a transition refused for reason at at.
func Aborted(reason AbortReason, at time.Time) SignalOutput {
	return SignalOutput{Status: ConnectionStatus{Kind: StatusAborted, Abort: reason}, SignaledAt: at}
}

// AbortUnacceptableBy aborts because the room or client refused the request.
func AbortUnacceptableBy(r RoomRejection) AbortReason {
	return AbortReason{Kind: AbortUnacceptable, Rejection: r}
}

// AbortInternalBy aborts because of a storage fault.
func AbortInternalBy(reason FailureReason) AbortReason {
	return AbortReason{Kind: AbortInternal, Failure: reason}
}

// AbortExternalBy aborts because the transport sent bad input.
func AbortExternalBy(reason RefusedReason) AbortReason {
	return AbortReason{Kind: AbortExternal, Refused: reason}
}

// BearerFailure names the precondition a bearer token failed.
type BearerFailure int

const (
	InvalidToken BearerFailure = iota + 1
	EmptyHeader
	ExpiredJwt
	EmptyCookie
	ParsingError
	BadJwtComponent
)

// String returns the wire name of the failure.
func (f BearerFailure) String() string {
	switch f {
	case InvalidToken:
		return "invalid token input"
	case EmptyHeader:
		return "the header is empty"
	case ExpiredJwt:
		return "expired jwt token"
	case EmptyCookie:
		return "missing authorizing cookie"
	case ParsingError:
		return "error while parsing the jwt"
	case BadJwtComponent:
		return "jwt token contains irregular components"
	default:
		return "unknown bearer failure"
	}
}

// AuthStatus is Success or Fail(BearerFailure).
type AuthStatus struct {
	OK     bool
	Reason BearerFailure
}

// AuthSuccess reports a valid token.
func AuthSuccess() AuthStatus { return AuthStatus{OK: true} }

// AuthFail reports a token refused for reason.
func AuthFail(reason BearerFailure) AuthStatus { return AuthStatus{Reason: reason} }

// String renders the status for logs and error bodies.
func (s AuthStatus) String() string {
	if s.OK {
		return "Success"
	}
	return "Fail(" + s.Reason.String() + ")"
}
