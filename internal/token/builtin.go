package token

import "github.com/nao1215/iocchecker/internal/model"

// Category is a named group of tokens sharing an event prefix.
type Category struct {
	Name   string
	Tokens []model.Token
}

// builtinCategories is the closed set of tokens recognized without any
// configuration, grouped by event category.
var builtinCategories = []Category{
	{
		Name: "imageLoadEvent",
		Tokens: []model.Token{
			"imageLoadEvent/timeStamp",
			"imageLoadEvent/fullPath",
			"imageLoadEvent/devicePath",
			"imageLoadEvent/drive",
			"imageLoadEvent/filePath",
			"imageLoadEvent/fileName",
			"imageLoadEvent/fileExtension",
			"imageLoadEvent/pid",
			"imageLoadEvent/process",
			"imageLoadEvent/parentPid",
			"imageLoadEvent/username",
			"imageLoadEvent/error",
		},
	},
	{
		Name: "processEvent",
		Tokens: []model.Token{
			"processEvent/timeStamp",
			"processEvent/eventType",
			"processEvent/processPath",
			"processEvent/process",
			"processEvent/parentPid",
			"processEvent/parentProcessPath",
			"processEvent/parentProcess",
			"processEvent/username",
			"processEvent/startTime",
			"processEvent/processCmdLine",
			"processEvent/md5",
		},
	},
	{
		Name: "fileWriteEvent",
		Tokens: []model.Token{
			"fileWriteEvent/timeStamp",
			"fileWriteEvent/fullPath",
			"fileWriteEvent/devicePath",
			"fileWriteEvent/drive",
			"fileWriteEvent/filePath",
			"fileWriteEvent/fileExtension",
			"fileWriteEvent/size",
			"fileWriteEvent/md5",
			"fileWriteEvent/pid",
			"fileWriteEvent/process",
			"fileWriteEvent/processPath",
			"fileWriteEvent/parentProcessPath",
			"fileWriteEvent/writes",
			"fileWriteEvent/numBytesSeenWritten",
			"fileWriteEvent/lowestFileOffset",
			"fileWriteEvent/dataAtLowestOffset",
			"fileWriteEvent/textAtLowestOffset",
			"fileWriteEvent/closed",
			"fileWriteEvent/error",
			"fileWriteEvent/username",
		},
	},
	{
		Name: "regKeyEvent",
		Tokens: []model.Token{
			"regKeyEvent/timeStamp",
			"regKeyEvent/path",
			"regKeyEvent/hive",
			"regKeyEvent/keyPath",
			"regKeyEvent/eventType",
			"regKeyEvent/valueName",
			"regKeyEvent/valueType",
			"regKeyEvent/value",
			"regKeyEvent/username",
			"regKeyEvent/originalPath",
			"regKeyEvent/process",
			"regKeyEvent/processPath",
			"regKeyEvent/pid",
			"regKeyEvent/text",
		},
	},
	{
		Name: "dnsLookupEvent",
		Tokens: []model.Token{
			"dnsLookupEvent/timeStamp",
			"dnsLookupEvent/hostname",
			"dnsLookupEvent/pid",
			"dnsLookupEvent/process",
			"dnsLookupEvent/processPath",
			"dnsLookupEvent/username",
		},
	},
	{
		Name: "ipv4NetworkEvent",
		Tokens: []model.Token{
			"ipv4NetworkEvent/timeStamp",
			"ipv4NetworkEvent/remoteIP",
			"ipv4NetworkEvent/remotePort",
			"ipv4NetworkEvent/localIP",
			"ipv4NetworkEvent/localPort",
			"ipv4NetworkEvent/protocol",
			"ipv4NetworkEvent/pid",
			"ipv4NetworkEvent/username",
			"ipv4NetworkEvent/processPath",
			"ipv4NetworkEvent/process",
		},
	},
	{
		Name: "urlMonitoringEvent",
		Tokens: []model.Token{
			"urlMonitoringEvent/timeStamp",
			"urlMonitoringEvent/hostname",
			"urlMonitoringEvent/requestUrl",
			"urlMonitoringEvent/urlMethod",
			"urlMonitoringEvent/userAgent",
			"urlMonitoringEvent/httpHeader",
			"urlMonitoringEvent/remoteIpAddress",
			"urlMonitoringEvent/remotePort",
			"urlMonitoringEvent/localPort",
			"urlMonitoringEvent/pid",
			"urlMonitoringEvent/process",
			"urlMonitoringEvent/processPath",
			"urlMonitoringEvent/username",
			"urlMonitoringEvent/error",
		},
	},
	{
		Name: "addressNotificationEvent",
		Tokens: []model.Token{
			"addressNotificationEvent/address",
			"addressNotificationEvent/timeStamp",
		},
	},
}

// BuiltinCategories returns a copy of the built-in categories.
func BuiltinCategories() []Category {
	out := make([]Category, len(builtinCategories))
	for i, c := range builtinCategories {
		tokens := make([]model.Token, len(c.Tokens))
		copy(tokens, c.Tokens)
		out[i] = Category{Name: c.Name, Tokens: tokens}
	}
	return out
}

// Builtin returns all built-in tokens in category order.
func Builtin() []model.Token {
	var out []model.Token
	for _, c := range builtinCategories {
		out = append(out, c.Tokens...)
	}
	return out
}
