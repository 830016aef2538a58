/*
Copyright 2026 The Poleshift authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package catalog

// DefaultBaseURL is the server hosting the KrakenUniq database files.
const DefaultBaseURL = "https://pr2.poleshift.cloud"

// Default returns the built-in catalog of KrakenUniq database files
// required by the sequence classifier.
func Default() *Catalog {
	return &Catalog{
		Resources: []Resource{
			{
				Name:               "database.kdb.gz",
				URL:                DefaultBaseURL + "/database.kdb.gz",
				CompressedDigest:   "d01c990394bb7dd3e55ec3bcffd82f20194b4045bec88d503fbb9db5da9254c8",
				DecompressedDigest: "b1b5322ad305ea92da0c9e22fea04b848271812e11a4b2b63adf176ff8b584de",
				Decompress:         true,
			},
			{
				Name:               "database.kdb.counts.gz",
				URL:                DefaultBaseURL + "/database.kdb.counts.gz",
				CompressedDigest:   "a66bcb659953a9793e75d62ec07fe99fcc1ee9c6d408f6d0b588caaf6afa4991",
				DecompressedDigest: "7823e77c3bc89539c9c0f104c9cc728e16b60b4f6bc8718a2d072ff951f217b7",
				Decompress:         true,
			},
			{
				Name:               "database.idx.gz",
				URL:                DefaultBaseURL + "/database.idx.gz",
				CompressedDigest:   "ecb678053d571f3fad38a67f15b72e10bd820f54d4c97fa4be919a5eba075395",
				DecompressedDigest: "64eeb6e6cc4684f6b196bd17713103fb242768d1dafec471e395cc6489584e83",
				Decompress:         true,
			},
			{
				Name:               "taxDB.gz",
				URL:                DefaultBaseURL + "/taxDB.gz",
				CompressedDigest:   "0b0bde984ccce9d903d91c05306ed209901858adc73f0b8ca460a8333c372959",
				DecompressedDigest: "1a067cb6c1a512e27bc131ced0e39d72b688bd4eccf31b51e9d08468638edd1a",
				Decompress:         true,
			},
		},
	}
}
