package protocol

import "fmt"

var classNames = map[uint16]string{
	ClassConnection: "connection",
	ClassChannel:    "channel",
	ClassExchange:   "exchange",
	ClassQueue:      "queue",
	ClassBasic:      "basic",
	ClassConfirm:    "confirm",
	ClassTx:         "tx",
}

// methodNames covers the full 0-9-1 method table, including methods that are
// relayed without being modeled, so logs can name pass-through traffic.
var methodNames = map[[2]uint16]string{
	{ClassConnection, MethodConnectionStart}:     "start",
	{ClassConnection, MethodConnectionStartOk}:   "start-ok",
	{ClassConnection, MethodConnectionSecure}:    "secure",
	{ClassConnection, MethodConnectionSecureOk}:  "secure-ok",
	{ClassConnection, MethodConnectionTune}:      "tune",
	{ClassConnection, MethodConnectionTuneOk}:    "tune-ok",
	{ClassConnection, MethodConnectionOpen}:      "open",
	{ClassConnection, MethodConnectionOpenOk}:    "open-ok",
	{ClassConnection, MethodConnectionClose}:     "close",
	{ClassConnection, MethodConnectionCloseOk}:   "close-ok",
	{ClassConnection, MethodConnectionBlocked}:   "blocked",
	{ClassConnection, MethodConnectionUnblocked}: "unblocked",

	{ClassChannel, MethodChannelOpen}:    "open",
	{ClassChannel, MethodChannelOpenOk}:  "open-ok",
	{ClassChannel, MethodChannelFlow}:    "flow",
	{ClassChannel, MethodChannelFlowOk}:  "flow-ok",
	{ClassChannel, MethodChannelClose}:   "close",
	{ClassChannel, MethodChannelCloseOk}: "close-ok",

	{ClassExchange, 10}: "declare",
	{ClassExchange, 11}: "declare-ok",
	{ClassExchange, 20}: "delete",
	{ClassExchange, 21}: "delete-ok",
	{ClassExchange, 30}: "bind",
	{ClassExchange, 31}: "bind-ok",
	{ClassExchange, 40}: "unbind",
	{ClassExchange, 51}: "unbind-ok",

	{ClassQueue, 10}: "declare",
	{ClassQueue, 11}: "declare-ok",
	{ClassQueue, 20}: "bind",
	{ClassQueue, 21}: "bind-ok",
	{ClassQueue, 30}: "purge",
	{ClassQueue, 31}: "purge-ok",
	{ClassQueue, 40}: "delete",
	{ClassQueue, 41}: "delete-ok",
	{ClassQueue, 50}: "unbind",
	{ClassQueue, 51}: "unbind-ok",

	{ClassBasic, MethodBasicQos}:          "qos",
	{ClassBasic, MethodBasicQosOk}:        "qos-ok",
	{ClassBasic, MethodBasicConsume}:      "consume",
	{ClassBasic, MethodBasicConsumeOk}:    "consume-ok",
	{ClassBasic, MethodBasicCancel}:       "cancel",
	{ClassBasic, MethodBasicCancelOk}:     "cancel-ok",
	{ClassBasic, MethodBasicPublish}:      "publish",
	{ClassBasic, MethodBasicReturn}:       "return",
	{ClassBasic, MethodBasicDeliver}:      "deliver",
	{ClassBasic, MethodBasicGet}:          "get",
	{ClassBasic, MethodBasicGetOk}:        "get-ok",
	{ClassBasic, MethodBasicGetEmpty}:     "get-empty",
	{ClassBasic, MethodBasicAck}:          "ack",
	{ClassBasic, MethodBasicReject}:       "reject",
	{ClassBasic, MethodBasicRecoverAsync}: "recover-async",
	{ClassBasic, MethodBasicRecover}:      "recover",
	{ClassBasic, MethodBasicRecoverOk}:    "recover-ok",
	{ClassBasic, MethodBasicNack}:         "nack",

	{ClassConfirm, 10}: "select",
	{ClassConfirm, 11}: "select-ok",

	{ClassTx, 10}: "select",
	{ClassTx, 11}: "select-ok",
	{ClassTx, 20}: "commit",
	{ClassTx, 21}: "commit-ok",
	{ClassTx, 30}: "rollback",
	{ClassTx, 31}: "rollback-ok",
}

// ClassName returns the protocol name of a class, or "class(N)".
func ClassName(classID uint16) string {
	if name, ok := classNames[classID]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", classID)
}

// MethodName returns "class.method" for logging, falling back to numeric ids
// for anything outside the 0-9-1 table.
func MethodName(classID, methodID uint16) string {
	if name, ok := methodNames[[2]uint16{classID, methodID}]; ok {
		return ClassName(classID) + "." + name
	}
	return fmt.Sprintf("%s.method(%d)", ClassName(classID), methodID)
}

// Describe returns a short label for f: the method name for method frames,
// the frame type otherwise.
func Describe(f Frame) string {
	switch v := f.(type) {
	case MethodFrame:
		if v.Method == nil {
			return "method(nil)"
		}
		return v.Method.Name()
	case GenericBasic:
		return MethodName(ClassBasic, v.MethodID)
	case GenericFrame:
		if classID, ok := v.ClassID(); ok {
			if len(v.Body) >= 4 {
				return MethodName(classID, uint16(v.Body[2])<<8|uint16(v.Body[3]))
			}
			return ClassName(classID)
		}
		return v.Type.String()
	case HeartbeatFrame:
		return "heartbeat"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", f)
	}
}
