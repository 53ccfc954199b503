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

/*
Package proto implements the binary framing of the Sirena gateway protocol.

Message

A message is a 100-byte header followed by a body of body-length bytes.

  +-------------------------+------------------------------------------------+
  | 100-byte message header |                  message body                  |
  +-------------------------+------------------------------------------------+

Message Header

All integers are big-endian.

        |0|1|2|3|4|5|6|7|0|1|2|3|4|5|6|7|0|1|2|3|4|5|6|7|0|1|2|3|4|5|6|7|
   byte |              0|              1|              2|              3|
  ------+---------------+---------------+---------------+---------------+
      0 | body length                                                   |
  ------+---------------------------------------------------------------+
      4 | timestamp (unix seconds)                                      |
  ------+---------------------------------------------------------------+
      8 | message id                                                    |
  ------+---------------------------------------------------------------+
     12 | reserved (32 bytes)                                           |
  ------+-------------------------------+---------------+---------------+
     44 | client id                     | flags         | status flags  |
  ------+-------------------------------+---------------+---------------+
     48 | symmetric key id                                              |
  ------+---------------------------------------------------------------+
     52 | reserved (48 bytes)                                           |
  ------+---------------------------------------------------------------+

  flags:
    0x04  body is zlib compressed
    0x08  body is encrypted with the symmetric session key
    0x10  client accepts a compressed response
    0x40  body is encrypted with RSA keys

  status flags:
    0x01  gateway could not process the message, resend it

Body Variants

  plain       optional zlib compression
  symmetric   optional zlib compression, PKCS#5 padding, DES in ECB mode
  asymmetric  int32 length | RSA ciphertext | RSA-SHA1 signature of SHA1(ciphertext)
*/
package proto
