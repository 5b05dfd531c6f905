// Asmexplain explains disassembled functions in plain language using an LLM.
//
// It produces per-function disassembly artifacts from ELF binaries, serves
// explanations over HTTP for a browser frontend, and persists every
// explanation next to its artifact so a function is explained only once.
//
// Usage:
//
//	asmexplain disasm ./a.out --file-id f1     # write artifacts and the function index
//	asmexplain serve                           # GET /explain/{fileId}/{address}
//	asmexplain explain f1 0x401000             # one-shot explanation
//	asmexplain explain f1 0x401000 --format pretty
//	asmexplain cache clear f1                  # forget persisted explanations
//
// The Gemini API key is read from GOOGLE_API_KEY (or GEMINI_API_KEY),
// optionally through a .env file in the working directory.
package main
