// Package aprs implements the APRS application layer over AX.25 UI
// frames: payload parsing (message, position, status, MIC-E, …),
// confirmable message retransmission, deduplication, and UI digipeating
// with WIDEn-N/TRACEn-N alias expansion (spec.md §4.6-§4.9).
package aprs

// DataType is the APRS data-type identifier, the first byte of a UI
// frame's information field (spec.md §3, APRS 1.0.1 page 17).
type DataType byte

const (
	DataTypeMICEBeta0    DataType = 0x1c
	DataTypeMICEOldBeta0 DataType = 0x1d
	DataTypePosition     DataType = '!'
	DataTypePeetBrosWX1  DataType = '#'
	DataTypeRawGPS       DataType = '$'
	DataTypeAgreloDFJr   DataType = '%'
	DataTypeReservedMap  DataType = '&'
	DataTypeMICEOld      DataType = '\''
	DataTypeItem         DataType = ')'
	DataTypePeetBrosWX2  DataType = '*'
	DataTypeTestData     DataType = ','
	DataTypePositionTS   DataType = '/'
	DataTypeMessage      DataType = ':'
	DataTypeObject       DataType = ';'
	DataTypeStationCap   DataType = '<'
	DataTypePosMsgCap    DataType = '='
	DataTypeStatus       DataType = '>'
	DataTypeQuery        DataType = '?'
	DataTypePosTSMsgCap  DataType = '@'
	DataTypeTelemetry    DataType = 'T'
	DataTypeMaidenhead   DataType = '['
	DataTypeWX           DataType = '_'
	DataTypeMICE         DataType = '`'
	DataTypeUserDefined  DataType = '{'
	DataTypeThirdParty   DataType = '}'
)

// PIDNoLayer3 is the AX.25 PID value APRS always uses: "no layer 3
// protocol" (spec.md §4.6).
const PIDNoLayer3 uint8 = 0xF0

var knownDataTypes = map[DataType]bool{
	DataTypeMICEBeta0: true, DataTypeMICEOldBeta0: true, DataTypePosition: true,
	DataTypePeetBrosWX1: true, DataTypeRawGPS: true, DataTypeAgreloDFJr: true,
	DataTypeReservedMap: true, DataTypeMICEOld: true, DataTypeItem: true,
	DataTypePeetBrosWX2: true, DataTypeTestData: true, DataTypePositionTS: true,
	DataTypeMessage: true, DataTypeObject: true, DataTypeStationCap: true,
	DataTypePosMsgCap: true, DataTypeStatus: true, DataTypeQuery: true,
	DataTypePosTSMsgCap: true, DataTypeTelemetry: true, DataTypeMaidenhead: true,
	DataTypeWX: true, DataTypeMICE: true, DataTypeUserDefined: true,
	DataTypeThirdParty: true,
}
