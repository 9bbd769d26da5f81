package sandbox

// guestHeader is the preamble of a minimal guest: one (i32, i32) -> i32
// function exported as "transact" and one page of memory exported as
// "memory". Appending a code section completes the module.
var guestHeader = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	// function section
	0x03, 0x02, 0x01, 0x00,
	// memory section: min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// export section
	0x07, 0x15, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x08, 't', 'r', 'a', 'n', 's', 'a', 'c', 't', 0x00, 0x00,
}

// EchoWasm is a guest that replies with its request unchanged. Transaction
// code 99 makes it trap, which is handy for exercising death notification.
var EchoWasm = append(append([]byte(nil), guestHeader...),
	0x0a, 0x10, 0x01, 0x0e, 0x00,
	0x20, 0x00,       // local.get 0
	0x41, 0xe3, 0x00, // i32.const 99
	0x46,             // i32.eq
	0x04, 0x40,       // if
	0x00,             // unreachable
	0x0b,             // end
	0x20, 0x01,       // local.get 1
	0x0b,
)

// EchoTrapCode is the transaction code that makes EchoWasm trap.
const EchoTrapCode = 99
